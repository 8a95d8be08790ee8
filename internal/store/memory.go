package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an arena of records by id. It is the backend for tests and
// for running the API without external services.
type Memory struct {
	accounts   *memCollection[Account]
	groups     *memCollection[Group]
	activities *memCollection[Activity]
	entries    *memCollection[MoodEntry]
}

func NewMemory() *Memory {
	return &Memory{
		accounts: newMemCollection(identity[Account], func(k Keys) string {
			return k.Email
		}),
		groups:     newMemCollection(Group.clone, nil),
		activities: newMemCollection(identity[Activity], nil),
		entries: newMemCollection(MoodEntry.clone, func(k Keys) string {
			if k.Day == "" {
				return ""
			}
			return k.AccountID + "/" + k.Day
		}),
	}
}

func (m *Memory) Accounts() Collection[Account]      { return m.accounts }
func (m *Memory) Groups() Collection[Group]          { return m.groups }
func (m *Memory) Activities() Collection[Activity]   { return m.activities }
func (m *Memory) MoodEntries() Collection[MoodEntry] { return m.entries }
func (m *Memory) Ping(context.Context) error         { return nil }
func (m *Memory) Close(context.Context) error        { return nil }

func identity[T any](v T) T { return v }

type memCollection[T Record] struct {
	mu     sync.RWMutex
	order  []string
	docs   map[string]T
	clone  func(T) T
	unique func(Keys) string
}

func newMemCollection[T Record](clone func(T) T, unique func(Keys) string) *memCollection[T] {
	return &memCollection[T]{
		docs:   make(map[string]T),
		clone:  clone,
		unique: unique,
	}
}

func (c *memCollection[T]) Find(_ context.Context, filter Filter) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0)
	for _, id := range c.order {
		doc := c.docs[id]
		if filter.Matches(doc.Keys()) {
			out = append(out, c.clone(doc))
		}
	}
	return out, nil
}

func (c *memCollection[T]) InsertMany(_ context.Context, docs []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	taken := c.uniqueIndex(nil)
	batch := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		keys := doc.Keys()
		if keys.ID == "" {
			return fmt.Errorf("insert: record without id")
		}
		if _, ok := c.docs[keys.ID]; ok {
			return fmt.Errorf("%w: id %s", ErrDuplicateKey, keys.ID)
		}
		if _, ok := batch[keys.ID]; ok {
			return fmt.Errorf("%w: id %s", ErrDuplicateKey, keys.ID)
		}
		batch[keys.ID] = struct{}{}
		if err := c.claim(taken, keys); err != nil {
			return err
		}
	}
	for _, doc := range docs {
		id := doc.Keys().ID
		c.docs[id] = c.clone(doc)
		c.order = append(c.order, id)
	}
	return nil
}

func (c *memCollection[T]) ReplaceMany(_ context.Context, docs []T) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []T
	for _, doc := range docs {
		keys := doc.Keys()
		existing, ok := c.docs[keys.ID]
		if !ok || existing.Keys().AccountID != keys.AccountID {
			continue
		}
		matched = append(matched, doc)
	}

	if c.unique != nil {
		replaced := make(map[string]struct{}, len(matched))
		for _, doc := range matched {
			replaced[doc.Keys().ID] = struct{}{}
		}
		taken := c.uniqueIndex(replaced)
		for _, doc := range matched {
			if err := c.claim(taken, doc.Keys()); err != nil {
				return 0, err
			}
		}
	}

	for _, doc := range matched {
		c.docs[doc.Keys().ID] = c.clone(doc)
	}
	return int64(len(matched)), nil
}

func (c *memCollection[T]) DeleteMany(_ context.Context, filter Filter) (int64, error) {
	if filter.IsZero() {
		return 0, ErrUnscopedDelete
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	var deleted int64
	for _, id := range c.order {
		if filter.Matches(c.docs[id].Keys()) {
			delete(c.docs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return deleted, nil
}

// uniqueIndex maps unique key to owning id for every stored record not in skip.
func (c *memCollection[T]) uniqueIndex(skip map[string]struct{}) map[string]string {
	taken := make(map[string]string)
	if c.unique == nil {
		return taken
	}
	for id, doc := range c.docs {
		if _, ok := skip[id]; ok {
			continue
		}
		if key := c.unique(doc.Keys()); key != "" {
			taken[key] = id
		}
	}
	return taken
}

func (c *memCollection[T]) claim(taken map[string]string, keys Keys) error {
	if c.unique == nil {
		return nil
	}
	key := c.unique(keys)
	if key == "" {
		return nil
	}
	if owner, ok := taken[key]; ok && owner != keys.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	taken[key] = keys.ID
	return nil
}

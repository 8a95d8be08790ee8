package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"moodsun/api/internal/store"
)

func newTestEngine(t *testing.T, backend store.Backend) (*Engine, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(backend, WithMetrics(metrics)), metrics
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func storedEntries(t *testing.T, backend store.Backend, accountID string) []store.MoodEntry {
	t.Helper()
	entries, err := backend.MoodEntries().Find(context.Background(), store.Filter{AccountID: accountID})
	require.NoError(t, err)
	return entries
}

func entryDays(entries []store.MoodEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, store.DayKey(e.Date))
	}
	return out
}

func activityNames(in []store.Activity) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		out = append(out, a.Name)
	}
	return out
}

// faultyBackend wraps a memory backend so tests can make storage report
// fewer affected records than it wrote.
type faultyBackend struct {
	*store.Memory
	groups     *faultyCollection[store.Group]
	activities *faultyCollection[store.Activity]
	entries    *faultyCollection[store.MoodEntry]
}

func newFaultyBackend() *faultyBackend {
	mem := store.NewMemory()
	return &faultyBackend{
		Memory:     mem,
		groups:     &faultyCollection[store.Group]{Collection: mem.Groups()},
		activities: &faultyCollection[store.Activity]{Collection: mem.Activities()},
		entries:    &faultyCollection[store.MoodEntry]{Collection: mem.MoodEntries()},
	}
}

func (b *faultyBackend) Groups() store.Collection[store.Group]          { return b.groups }
func (b *faultyBackend) Activities() store.Collection[store.Activity]   { return b.activities }
func (b *faultyBackend) MoodEntries() store.Collection[store.MoodEntry] { return b.entries }

type faultyCollection[T store.Record] struct {
	store.Collection[T]
	replaceShort      int64
	// replace calls up to this count report truthfully
	replaceShortAfter int
	deleteShort       int64
	replaceCalls      int
	replaced          int
}

func (c *faultyCollection[T]) ReplaceMany(ctx context.Context, docs []T) (int64, error) {
	c.replaceCalls++
	c.replaced += len(docs)
	n, err := c.Collection.ReplaceMany(ctx, docs)
	if c.replaceCalls <= c.replaceShortAfter {
		return n, err
	}
	return n - c.replaceShort, err
}

func (c *faultyCollection[T]) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	n, err := c.Collection.DeleteMany(ctx, filter)
	return n - c.deleteShort, err
}

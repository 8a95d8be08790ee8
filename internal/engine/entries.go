package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"moodsun/api/internal/store"
)

const (
	opSyncEntries  = "update all mood entries"
	opInsertEntry  = "insert mood entry"
	opUpdateEntry  = "update mood entry"
	opDeleteEntry  = "delete mood entry"
	entriesName    = "mood entries"
	entryEntity    = "mood entry"
	activityEntity = "activity"
)

// SyncResult counts the records each batch of UpdateAllMoodEntries wrote.
type SyncResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
}

// UpdateAllMoodEntries makes the account's stored entries equal to entries,
// matching by calendar day. Matched entries keep their stored id.
func (e *Engine) UpdateAllMoodEntries(ctx context.Context, accountID string, entries []store.MoodEntry) (result SyncResult, err error) {
	defer func() { e.metrics.observeOperation(opSyncEntries, err) }()

	desired := make([]store.MoodEntry, 0, len(entries))
	for _, entry := range entries {
		normalized, err := normalizeEntry(accountID, entry)
		if err != nil {
			return SyncResult{}, err
		}
		desired = append(desired, normalized)
	}
	if err := e.requireActivities(ctx, accountID, desired...); err != nil {
		return SyncResult{}, err
	}

	current, err := e.backend.MoodEntries().Find(ctx, store.Filter{AccountID: accountID})
	if err != nil {
		return SyncResult{}, fmt.Errorf("find mood entries: %w", err)
	}
	plan, err := Diff(desired, current, entryKey, adoptEntryID)
	if err != nil {
		return SyncResult{}, err
	}
	for i := range plan.Insert {
		plan.Insert[i].ID = e.ids.NewID()
	}

	if err := newExecutor(e, entriesName, e.backend.MoodEntries()).apply(ctx, opSyncEntries, accountID, plan); err != nil {
		return SyncResult{}, err
	}
	return SyncResult{Inserted: len(plan.Insert), Updated: len(plan.Update), Deleted: len(plan.Delete)}, nil
}

// InsertMoodEntry stores one new entry. A second entry for the same day is
// rejected by storage with store.ErrDuplicateKey.
func (e *Engine) InsertMoodEntry(ctx context.Context, accountID string, entry store.MoodEntry) (view store.MoodEntryView, err error) {
	defer func() { e.metrics.observeOperation(opInsertEntry, err) }()

	record, err := normalizeEntry(accountID, entry)
	if err != nil {
		return store.MoodEntryView{}, err
	}
	if err := e.requireActivities(ctx, accountID, record); err != nil {
		return store.MoodEntryView{}, err
	}
	record.ID = e.ids.NewID()
	if err := newExecutor(e, entriesName, e.backend.MoodEntries()).insert(ctx, []store.MoodEntry{record}); err != nil {
		return store.MoodEntryView{}, err
	}
	return e.entryView(ctx, accountID, record)
}

// UpdateMoodEntry replaces one stored entry of the account.
func (e *Engine) UpdateMoodEntry(ctx context.Context, accountID string, entry store.MoodEntry) (view store.MoodEntryView, err error) {
	defer func() { e.metrics.observeOperation(opUpdateEntry, err) }()

	if entry.ID == "" {
		return store.MoodEntryView{}, invalidf("mood entry id is required")
	}
	record, err := normalizeEntry(accountID, entry)
	if err != nil {
		return store.MoodEntryView{}, err
	}
	if _, err := findOwned(ctx, e.backend.MoodEntries(), entryEntity, accountID, []string{record.ID}); err != nil {
		return store.MoodEntryView{}, err
	}
	if err := e.requireActivities(ctx, accountID, record); err != nil {
		return store.MoodEntryView{}, err
	}
	if err := newExecutor(e, entriesName, e.backend.MoodEntries()).
		replaceVerified(ctx, opUpdateEntry, []store.MoodEntry{record}); err != nil {
		return store.MoodEntryView{}, err
	}
	return e.entryView(ctx, accountID, record)
}

// DeleteMoodEntry removes one entry of the account and returns the image
// references it held.
func (e *Engine) DeleteMoodEntry(ctx context.Context, accountID, id string) (images []string, err error) {
	defer func() { e.metrics.observeOperation(opDeleteEntry, err) }()

	found, err := findOwned(ctx, e.backend.MoodEntries(), entryEntity, accountID, []string{id})
	if err != nil {
		return nil, err
	}
	if err := newExecutor(e, entriesName, e.backend.MoodEntries()).
		removeVerified(ctx, opDeleteEntry, accountID, []string{id}); err != nil {
		return nil, err
	}
	return nonNilStrings(found[0].Images), nil
}

// GetMoodEntry returns the stored record without resolving activities.
func (e *Engine) GetMoodEntry(ctx context.Context, accountID, id string) (store.MoodEntry, error) {
	found, err := findOwned(ctx, e.backend.MoodEntries(), entryEntity, accountID, []string{id})
	if err != nil {
		return store.MoodEntry{}, err
	}
	return found[0], nil
}

func (e *Engine) GetMoodEntryWithActivities(ctx context.Context, accountID, id string) (store.MoodEntryView, error) {
	entry, err := e.GetMoodEntry(ctx, accountID, id)
	if err != nil {
		return store.MoodEntryView{}, err
	}
	return e.entryView(ctx, accountID, entry)
}

func (e *Engine) entryView(ctx context.Context, accountID string, entry store.MoodEntry) (store.MoodEntryView, error) {
	views, err := e.entryViews(ctx, accountID, []store.MoodEntry{entry})
	if err != nil {
		return store.MoodEntryView{}, err
	}
	return views[0], nil
}

// requireActivities fails with NotFoundError when an entry references an
// activity the account does not have.
func (e *Engine) requireActivities(ctx context.Context, accountID string, entries ...store.MoodEntry) error {
	var ids []string
	for _, entry := range entries {
		ids = append(ids, entry.ActivityIDs...)
	}
	if len(ids) == 0 {
		return nil
	}
	ids = dedupe(ids)
	index, err := e.activityIndex(ctx, accountID, ids)
	if err != nil {
		return err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		e.log.Debug("unknown activity references", zap.String("account", accountID), zap.Strings("activities", missing))
		return &NotFoundError{Entity: activityEntity, IDs: missing, Missing: len(missing)}
	}
	return nil
}

// normalizeEntry scopes the entry to the account, truncates its date to the
// calendar day and drops repeated activity ids.
func normalizeEntry(accountID string, entry store.MoodEntry) (store.MoodEntry, error) {
	if entry.Date.IsZero() {
		return store.MoodEntry{}, invalidf("mood entry date is required")
	}
	entry.AccountID = accountID
	entry.Date = store.Day(entry.Date)
	entry.Images = append([]string{}, entry.Images...)
	entry.ActivityIDs = dedupe(entry.ActivityIDs)
	return entry, nil
}

func entryKey(m store.MoodEntry) (string, bool) {
	day := store.DayKey(m.Date)
	return day, day != ""
}

func adoptEntryID(dst *store.MoodEntry, src store.MoodEntry) {
	dst.ID = src.ID
}

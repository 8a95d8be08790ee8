package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"moodsun/api/internal/store"
)

// GetAllGroupsWithActivities returns the account's groups with their
// activities inlined in list order. Groups without activities are included
// with an empty list. Views are sorted by Order, then name.
func (e *Engine) GetAllGroupsWithActivities(ctx context.Context, accountID string) ([]store.GroupView, error) {
	groups, err := e.backend.Groups().Find(ctx, store.Filter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}
	var childIDs []string
	for _, g := range groups {
		childIDs = append(childIDs, g.ActivityIDs...)
	}
	activities, err := e.activityIndex(ctx, accountID, childIDs)
	if err != nil {
		return nil, err
	}

	views := make([]store.GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, store.GroupView{
			ID:         g.ID,
			AccountID:  g.AccountID,
			Name:       g.Name,
			Visible:    g.Visible,
			Order:      g.Order,
			Activities: e.resolve(g.ID, g.ActivityIDs, activities),
		})
	}
	slices.SortStableFunc(views, func(a, b store.GroupView) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return views, nil
}

// GetAllMoodEntriesWithActivities returns the account's entries, oldest day
// first, with their activities inlined.
func (e *Engine) GetAllMoodEntriesWithActivities(ctx context.Context, accountID string) ([]store.MoodEntryView, error) {
	entries, err := e.backend.MoodEntries().Find(ctx, store.Filter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("find mood entries: %w", err)
	}
	return e.entryViews(ctx, accountID, entries)
}

func (e *Engine) entryViews(ctx context.Context, accountID string, entries []store.MoodEntry) ([]store.MoodEntryView, error) {
	var childIDs []string
	for _, m := range entries {
		childIDs = append(childIDs, m.ActivityIDs...)
	}
	activities, err := e.activityIndex(ctx, accountID, childIDs)
	if err != nil {
		return nil, err
	}

	views := make([]store.MoodEntryView, 0, len(entries))
	for _, m := range entries {
		views = append(views, store.MoodEntryView{
			ID:         m.ID,
			AccountID:  m.AccountID,
			Date:       m.Date,
			Mood:       m.Mood,
			Note:       m.Note,
			Images:     nonNilStrings(m.Images),
			Activities: e.resolve(m.ID, m.ActivityIDs, activities),
		})
	}
	slices.SortStableFunc(views, func(a, b store.MoodEntryView) int {
		return cmp.Or(a.Date.Compare(b.Date), cmp.Compare(a.ID, b.ID))
	})
	return views, nil
}

// activityIndex loads the account's activities among ids.
func (e *Engine) activityIndex(ctx context.Context, accountID string, ids []string) (map[string]store.Activity, error) {
	index := make(map[string]store.Activity, len(ids))
	if len(ids) == 0 {
		return index, nil
	}
	found, err := e.backend.Activities().Find(ctx, store.Filter{AccountID: accountID, IDs: dedupe(ids)})
	if err != nil {
		return nil, fmt.Errorf("find activities: %w", err)
	}
	for _, a := range found {
		index[a.ID] = a
	}
	return index, nil
}

// resolve maps an id list to activities. Ids that do not resolve are
// dropped from the view and logged.
func (e *Engine) resolve(parentID string, ids []string, index map[string]store.Activity) []store.Activity {
	out := make([]store.Activity, 0, len(ids))
	for _, id := range ids {
		a, ok := index[id]
		if !ok {
			e.log.Warn("dangling activity reference", zap.String("parent", parentID), zap.String("activity", id))
			continue
		}
		out = append(out, a)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

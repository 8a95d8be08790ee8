package engine

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"moodsun/api/internal/store"
)

// cascade strips the removed activity ids from every mood entry of the
// account that references them, one replace per entry, and returns the
// number of entries touched. Already deleted parents are not restored when
// the replace batch comes up short.
func (e *Engine) cascade(ctx context.Context, operation, accountID string, removed []string) (int, error) {
	if len(removed) == 0 {
		return 0, nil
	}
	gone := make(map[string]struct{}, len(removed))
	for _, id := range removed {
		gone[id] = struct{}{}
	}

	entries, err := e.backend.MoodEntries().Find(ctx, store.Filter{AccountID: accountID, ActivityIDs: removed})
	if err != nil {
		return 0, fmt.Errorf("find referencing mood entries: %w", err)
	}

	touched := make([]store.MoodEntry, 0, len(entries))
	for _, entry := range entries {
		kept := slices.DeleteFunc(slices.Clone(entry.ActivityIDs), func(id string) bool {
			_, ok := gone[id]
			return ok
		})
		if len(kept) == len(entry.ActivityIDs) {
			continue
		}
		entry.ActivityIDs = kept
		touched = append(touched, entry)
	}

	e.log.Debug("cascade activity removal",
		zap.String("operation", operation),
		zap.Int("activities", len(removed)),
		zap.Int("entries", len(touched)),
	)
	if err := newExecutor(e, "mood entries", e.backend.MoodEntries()).
		replaceVerified(ctx, operation+": strip activity references", touched); err != nil {
		return 0, err
	}
	e.metrics.observeCascade(len(touched))
	return len(touched), nil
}

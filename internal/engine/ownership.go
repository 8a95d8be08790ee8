package engine

import (
	"context"
	"fmt"

	"moodsun/api/internal/store"
)

// findOwned loads the records among ids that belong to the account. When
// some are missing, the rest are probed without the account scope: ids
// stored under another account fail with OwnershipError, anything else with
// NotFoundError.
func findOwned[T store.Record](ctx context.Context, coll store.Collection[T], entity, accountID string, ids []string) ([]T, error) {
	found, err := coll.Find(ctx, store.Filter{AccountID: accountID, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", entity, err)
	}
	if len(found) == len(ids) {
		return found, nil
	}

	have := make(map[string]struct{}, len(found))
	for _, rec := range found {
		have[rec.Keys().ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}

	foreign, err := coll.Find(ctx, store.Filter{IDs: missing})
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", entity, err)
	}
	if len(foreign) > 0 {
		return nil, &OwnershipError{Entity: entity, IDs: idsOf(foreign)}
	}
	return nil, &NotFoundError{Entity: entity, IDs: missing, Missing: len(missing)}
}

// requireUnique rejects an id list with repeats or blanks.
func requireUnique(entity string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return invalidf("%s id is required", entity)
		}
		if _, ok := seen[id]; ok {
			return invalidf("%s %s submitted twice", entity, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

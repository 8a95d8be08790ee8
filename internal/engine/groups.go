package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"moodsun/api/internal/store"
)

const (
	opCreateGroups = "create groups"
	opUpdateGroups = "update groups"
	opRemoveGroups = "remove groups"
)

// CreateGroups stores new groups with their activities under fresh ids.
// Activities are written first so groups never reference missing records.
func (e *Engine) CreateGroups(ctx context.Context, accountID string, groups []store.GroupView) (created []store.GroupView, err error) {
	defer func() { e.metrics.observeOperation(opCreateGroups, err) }()

	if len(groups) == 0 {
		return []store.GroupView{}, nil
	}
	for _, g := range groups {
		if strings.TrimSpace(g.Name) == "" {
			return nil, invalidf("group name is required")
		}
	}

	records := make([]store.Group, 0, len(groups))
	var activities []store.Activity
	created = make([]store.GroupView, 0, len(groups))
	for _, g := range groups {
		group := store.Group{
			ID:          e.ids.NewID(),
			AccountID:   accountID,
			Name:        g.Name,
			Visible:     g.Visible,
			Order:       g.Order,
			ActivityIDs: make([]string, 0, len(g.Activities)),
		}
		children := make([]store.Activity, 0, len(g.Activities))
		for _, a := range g.Activities {
			a.ID = e.ids.NewID()
			a.AccountID = accountID
			a.GroupID = group.ID
			children = append(children, a)
			group.ActivityIDs = append(group.ActivityIDs, a.ID)
		}
		activities = append(activities, children...)
		records = append(records, group)
		created = append(created, viewOf(group, children))
	}

	e.log.Debug("create groups", zap.String("account", accountID),
		zap.Int("groups", len(records)), zap.Int("activities", len(activities)))
	if err := newExecutor(e, "activities", e.backend.Activities()).insert(ctx, activities); err != nil {
		return nil, err
	}
	if err := newExecutor(e, "groups", e.backend.Groups()).insert(ctx, records); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateGroups reconciles each submitted group's activities with storage,
// cascading removed activities into mood entries, then rewrites the group
// record. Input is validated before any write. Groups are processed in
// order and a storage fault stops the batch with earlier groups already
// applied.
func (e *Engine) UpdateGroups(ctx context.Context, accountID string, groups []store.GroupView) (err error) {
	defer func() { e.metrics.observeOperation(opUpdateGroups, err) }()

	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		if err := validateGroupUpdate(g); err != nil {
			return err
		}
		ids = append(ids, g.ID)
	}
	if err := requireUnique("group", ids); err != nil {
		return err
	}
	if _, err := findOwned(ctx, e.backend.Groups(), "group", accountID, ids); err != nil {
		return err
	}

	activities := newExecutor(e, "activities", e.backend.Activities())
	records := newExecutor(e, "groups", e.backend.Groups())
	for _, g := range groups {
		record, err := e.syncGroupActivities(ctx, activities, accountID, g)
		if err != nil {
			return fmt.Errorf("group %s: %w", g.ID, err)
		}
		if err := records.replaceVerified(ctx, opUpdateGroups+": update groups", []store.Group{record}); err != nil {
			return fmt.Errorf("group %s: %w", g.ID, err)
		}
	}
	return nil
}

// validateGroupUpdate rejects a blank name and activity ids listed twice.
func validateGroupUpdate(g store.GroupView) error {
	if strings.TrimSpace(g.Name) == "" {
		return invalidf("group name is required")
	}
	seen := make(map[string]struct{}, len(g.Activities))
	for _, a := range g.Activities {
		if a.ID == "" {
			continue
		}
		if _, ok := seen[a.ID]; ok {
			return invalidf("group %s lists activity %s twice", g.ID, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

func (e *Engine) syncGroupActivities(ctx context.Context, activities executor[store.Activity], accountID string, g store.GroupView) (store.Group, error) {
	current, err := e.backend.Activities().Find(ctx, store.Filter{AccountID: accountID, GroupIDs: []string{g.ID}})
	if err != nil {
		return store.Group{}, fmt.Errorf("find activities: %w", err)
	}
	stored := make(map[string]struct{}, len(current))
	for _, a := range current {
		stored[a.ID] = struct{}{}
	}

	// ids not stored under this group are replaced, never trusted
	desired := make([]store.Activity, 0, len(g.Activities))
	childIDs := make([]string, 0, len(g.Activities))
	for _, a := range g.Activities {
		if _, ok := stored[a.ID]; !ok {
			a.ID = e.ids.NewID()
		}
		a.AccountID = accountID
		a.GroupID = g.ID
		desired = append(desired, a)
		childIDs = append(childIDs, a.ID)
	}
	plan, err := Diff(desired, current, activityKey, nil)
	if err != nil {
		return store.Group{}, err
	}

	e.log.Debug("sync group activities",
		zap.String("group", g.ID),
		zap.Int("insert", len(plan.Insert)),
		zap.Int("update", len(plan.Update)),
		zap.Int("delete", len(plan.Delete)),
	)
	if err := activities.insert(ctx, plan.Insert); err != nil {
		return store.Group{}, err
	}
	removed := idsOf(plan.Delete)
	if err := activities.removeVerified(ctx, opUpdateGroups+": delete activities", accountID, removed); err != nil {
		return store.Group{}, err
	}
	if _, err := e.cascade(ctx, opUpdateGroups, accountID, removed); err != nil {
		return store.Group{}, err
	}
	if err := activities.replaceVerified(ctx, opUpdateGroups+": update activities", plan.Update); err != nil {
		return store.Group{}, err
	}

	return store.Group{
		ID:          g.ID,
		AccountID:   accountID,
		Name:        g.Name,
		Visible:     g.Visible,
		Order:       g.Order,
		ActivityIDs: childIDs,
	}, nil
}

// RemoveGroups deletes the account's groups and their activities, then strips
// the removed activities from mood entries. It returns the number of entries
// whose references were cleaned.
func (e *Engine) RemoveGroups(ctx context.Context, accountID string, groupIDs []string) (cleaned int, err error) {
	defer func() { e.metrics.observeOperation(opRemoveGroups, err) }()

	if len(groupIDs) == 0 {
		return 0, nil
	}
	if err := requireUnique("group", groupIDs); err != nil {
		return 0, err
	}
	groups, err := findOwned(ctx, e.backend.Groups(), "group", accountID, groupIDs)
	if err != nil {
		return 0, err
	}
	if err := newExecutor(e, "groups", e.backend.Groups()).
		removeVerified(ctx, opRemoveGroups+": delete groups", accountID, groupIDs); err != nil {
		return 0, err
	}

	removed, err := e.removeActivities(ctx, opRemoveGroups, accountID, groups)
	if err != nil {
		return 0, err
	}
	return e.cascade(ctx, opRemoveGroups, accountID, removed)
}

// removeActivities deletes the activities of the given groups, found by back
// reference, and returns every activity id the groups held or were held by.
func (e *Engine) removeActivities(ctx context.Context, operation, accountID string, groups []store.Group) ([]string, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	groupIDs := idsOf(groups)
	children, err := e.backend.Activities().Find(ctx, store.Filter{AccountID: accountID, GroupIDs: groupIDs})
	if err != nil {
		return nil, fmt.Errorf("find activities: %w", err)
	}
	ids := idsOf(children)
	if err := newExecutor(e, "activities", e.backend.Activities()).
		removeVerified(ctx, operation+": delete activities", accountID, ids); err != nil {
		return nil, err
	}
	for _, g := range groups {
		ids = append(ids, g.ActivityIDs...)
	}
	return dedupe(ids), nil
}

func activityKey(a store.Activity) (string, bool) {
	return a.ID, a.ID != ""
}

func viewOf(g store.Group, activities []store.Activity) store.GroupView {
	return store.GroupView{
		ID:         g.ID,
		AccountID:  g.AccountID,
		Name:       g.Name,
		Visible:    g.Visible,
		Order:      g.Order,
		Activities: activities,
	}
}

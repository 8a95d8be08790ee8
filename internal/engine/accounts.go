package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"moodsun/api/internal/store"
)

const (
	opCreateAccount = "create account"
	opDeleteAccount = "delete account"
	accountEntity   = "account"
)

// CreateAccount stores the account under a fresh id and seeds its default
// groups. A taken email fails with store.ErrDuplicateKey.
func (e *Engine) CreateAccount(ctx context.Context, account store.Account) (created store.Account, err error) {
	defer func() { e.metrics.observeOperation(opCreateAccount, err) }()

	if account.Email == "" {
		return store.Account{}, invalidf("account email is required")
	}
	account.ID = e.ids.NewID()
	if err := newExecutor(e, "accounts", e.backend.Accounts()).insert(ctx, []store.Account{account}); err != nil {
		return store.Account{}, err
	}
	if _, err := e.SeedDefaultGroups(ctx, account.ID); err != nil {
		return store.Account{}, fmt.Errorf("seed default groups: %w", err)
	}
	return account, nil
}

func (e *Engine) SeedDefaultGroups(ctx context.Context, accountID string) ([]store.GroupView, error) {
	return e.CreateGroups(ctx, accountID, DefaultGroups())
}

// DeleteAccount removes groups, activities, activity references, mood
// entries and finally the account itself. It returns the image references
// of the deleted entries so the caller can release them.
func (e *Engine) DeleteAccount(ctx context.Context, accountID string) (images []string, err error) {
	defer func() { e.metrics.observeOperation(opDeleteAccount, err) }()

	if _, err := findOwned(ctx, e.backend.Accounts(), accountEntity, accountID, []string{accountID}); err != nil {
		return nil, err
	}

	groups, err := e.backend.Groups().Find(ctx, store.Filter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}
	if err := newExecutor(e, "groups", e.backend.Groups()).
		removeVerified(ctx, opDeleteAccount+": delete groups", accountID, idsOf(groups)); err != nil {
		return nil, err
	}
	removed, err := e.removeActivities(ctx, opDeleteAccount, accountID, groups)
	if err != nil {
		return nil, err
	}
	// activities whose group is already gone
	orphans, err := e.backend.Activities().Find(ctx, store.Filter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("find activities: %w", err)
	}
	if err := newExecutor(e, "activities", e.backend.Activities()).
		removeVerified(ctx, opDeleteAccount+": delete orphan activities", accountID, idsOf(orphans)); err != nil {
		return nil, err
	}
	removed = append(removed, idsOf(orphans)...)
	if _, err := e.cascade(ctx, opDeleteAccount, accountID, dedupe(removed)); err != nil {
		return nil, err
	}

	entries, err := e.backend.MoodEntries().Find(ctx, store.Filter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("find mood entries: %w", err)
	}
	images = []string{}
	for _, entry := range entries {
		images = append(images, entry.Images...)
	}
	if err := newExecutor(e, entriesName, e.backend.MoodEntries()).
		removeVerified(ctx, opDeleteAccount+": delete mood entries", accountID, idsOf(entries)); err != nil {
		return nil, err
	}

	if err := newExecutor(e, "accounts", e.backend.Accounts()).
		removeVerified(ctx, opDeleteAccount+": delete account", accountID, []string{accountID}); err != nil {
		return nil, err
	}
	e.log.Info("account deleted", zap.String("account", accountID),
		zap.Int("groups", len(groups)), zap.Int("entries", len(entries)))
	return images, nil
}

// Package store holds the stored record types and the collection client
// the engine runs against. Three backends implement it: an in-memory arena,
// MongoDB and PostgreSQL.
package store

import (
	"context"
	"errors"
	"slices"
)

var (
	// ErrDuplicateKey is returned when a write would violate a unique key:
	// record id, (account, day) for mood entries, or account email.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUnscopedDelete is returned by DeleteMany for an empty filter.
	ErrUnscopedDelete = errors.New("delete without filter")
)

// Filter selects records. A nil slice places no constraint; a non-nil empty
// slice matches nothing.
type Filter struct {
	IDs         []string
	AccountID   string
	GroupIDs    []string
	ActivityIDs []string // any-of
	Email       string
}

func (f Filter) IsZero() bool {
	return f.IDs == nil && f.AccountID == "" && f.GroupIDs == nil && f.ActivityIDs == nil && f.Email == ""
}

// Matches evaluates the filter against a record's keys.
func (f Filter) Matches(k Keys) bool {
	if f.IDs != nil && !slices.Contains(f.IDs, k.ID) {
		return false
	}
	if f.AccountID != "" && f.AccountID != k.AccountID {
		return false
	}
	if f.GroupIDs != nil && !slices.Contains(f.GroupIDs, k.GroupID) {
		return false
	}
	if f.ActivityIDs != nil && !containsAny(k.ActivityIDs, f.ActivityIDs) {
		return false
	}
	if f.Email != "" && f.Email != k.Email {
		return false
	}
	return true
}

func containsAny(have, want []string) bool {
	for _, id := range want {
		if slices.Contains(have, id) {
			return true
		}
	}
	return false
}

// Collection is a batch-oriented client for one record type.
type Collection[T Record] interface {
	Find(ctx context.Context, filter Filter) ([]T, error)
	// InsertMany writes all documents or fails.
	InsertMany(ctx context.Context, docs []T) error
	// ReplaceMany replaces each document matched by (id, account id) and
	// returns the number of documents matched.
	ReplaceMany(ctx context.Context, docs []T) (int64, error)
	// DeleteMany removes every matching document and returns how many went.
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
}

// Backend groups the four collections of one storage engine.
type Backend interface {
	Accounts() Collection[Account]
	Groups() Collection[Group]
	Activities() Collection[Activity]
	MoodEntries() Collection[MoodEntry]
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

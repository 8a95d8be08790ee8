package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBackend runs the behaviour every backend must share.
func testBackend(t *testing.T, backend Backend) {
	t.Helper()

	t.Run("find filters", func(t *testing.T) {
		ctx := context.Background()
		activities := backend.Activities()
		require.NoError(t, activities.InsertMany(ctx, []Activity{
			{ID: "a1", AccountID: "acct-1", GroupID: "g1", Name: "Reading"},
			{ID: "a2", AccountID: "acct-1", GroupID: "g2", Name: "Running"},
			{ID: "a3", AccountID: "acct-2", GroupID: "g1", Name: "Other"},
		}))

		got, err := activities.Find(ctx, Filter{AccountID: "acct-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, activityIDs(got))

		got, err = activities.Find(ctx, Filter{GroupIDs: []string{"g1"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a3"}, activityIDs(got))

		got, err = activities.Find(ctx, Filter{IDs: []string{}})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = activities.Find(ctx, Filter{IDs: []string{"a2", "a3"}, AccountID: "acct-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, activityIDs(got))
	})

	t.Run("replace matches on owner", func(t *testing.T) {
		ctx := context.Background()
		groups := backend.Groups()
		require.NoError(t, groups.InsertMany(ctx, []Group{
			{ID: "g10", AccountID: "acct-1", Name: "Hobbies", ActivityIDs: []string{"x"}},
		}))

		n, err := groups.ReplaceMany(ctx, []Group{
			{ID: "g10", AccountID: "acct-1", Name: "Renamed", ActivityIDs: []string{"x", "y"}},
			{ID: "g10", AccountID: "acct-2", Name: "Stolen"},
			{ID: "missing", AccountID: "acct-1", Name: "Ghost"},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := groups.Find(ctx, Filter{IDs: []string{"g10"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Renamed", got[0].Name)
		assert.Equal(t, []string{"x", "y"}, got[0].ActivityIDs)

		got, err = groups.Find(ctx, Filter{ActivityIDs: []string{"y", "nope"}})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("one entry per account and day", func(t *testing.T) {
		ctx := context.Background()
		entries := backend.MoodEntries()
		day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, entries.InsertMany(ctx, []MoodEntry{
			{ID: "e1", AccountID: "acct-1", Date: day, Mood: 3},
			{ID: "e2", AccountID: "acct-2", Date: day, Mood: 4},
		}))

		err := entries.InsertMany(ctx, []MoodEntry{{ID: "e3", AccountID: "acct-1", Date: day, Mood: 1}})
		assert.ErrorIs(t, err, ErrDuplicateKey)

		err = entries.InsertMany(ctx, []MoodEntry{{ID: "e1", AccountID: "acct-1", Date: day.AddDate(0, 0, 1)}})
		assert.ErrorIs(t, err, ErrDuplicateKey)

		got, err := entries.Find(ctx, Filter{AccountID: "acct-1"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Date.Equal(day))
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		activities := backend.Activities()
		require.NoError(t, activities.InsertMany(ctx, []Activity{
			{ID: "d1", AccountID: "acct-9", GroupID: "gd"},
			{ID: "d2", AccountID: "acct-9", GroupID: "gd"},
		}))

		_, err := activities.DeleteMany(ctx, Filter{})
		assert.ErrorIs(t, err, ErrUnscopedDelete)

		n, err := activities.DeleteMany(ctx, Filter{AccountID: "acct-9", IDs: []string{"d1", "zzz"}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = activities.DeleteMany(ctx, Filter{GroupIDs: []string{"gd"}})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("accounts unique by email", func(t *testing.T) {
		ctx := context.Background()
		accounts := backend.Accounts()
		require.NoError(t, accounts.InsertMany(ctx, []Account{{ID: "u1", Email: "sun@example.com"}}))
		err := accounts.InsertMany(ctx, []Account{{ID: "u2", Email: "sun@example.com"}})
		assert.ErrorIs(t, err, ErrDuplicateKey)

		got, err := accounts.Find(ctx, Filter{Email: "sun@example.com"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "u1", got[0].ID)

		got, err = accounts.Find(ctx, Filter{AccountID: "u1", IDs: []string{"u1"}})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func activityIDs(in []Activity) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		out = append(out, a.ID)
	}
	return out
}

package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	ID  string
	Key string
	Val int
}

func recKey(r rec) (string, bool) { return r.Key, r.Key != "" }

func adoptRecID(dst *rec, src rec) { dst.ID = src.ID }

func TestDiffDisjointKeys(t *testing.T) {
	desired := []rec{{Key: "a"}, {Key: "b"}}
	current := []rec{{ID: "1", Key: "c"}, {ID: "2", Key: "d"}}

	plan, err := Diff(desired, current, recKey, adoptRecID)
	require.NoError(t, err)
	assert.Equal(t, desired, plan.Insert)
	assert.Equal(t, current, plan.Delete)
	assert.Empty(t, plan.Update)
}

func TestDiffIdenticalKeysAdoptsStoredID(t *testing.T) {
	desired := []rec{{Key: "b", Val: 20}, {Key: "a", Val: 10}}
	current := []rec{{ID: "1", Key: "a"}, {ID: "2", Key: "b"}}

	plan, err := Diff(desired, current, recKey, adoptRecID)
	require.NoError(t, err)
	assert.Empty(t, plan.Insert)
	assert.Empty(t, plan.Delete)
	assert.Equal(t, []rec{{ID: "2", Key: "b", Val: 20}, {ID: "1", Key: "a", Val: 10}}, plan.Update)
}

func TestDiffUnkeyedRecordsAreInserted(t *testing.T) {
	plan, err := Diff([]rec{{Val: 1}, {Val: 2}}, []rec{{ID: "1", Key: "a"}}, recKey, adoptRecID)
	require.NoError(t, err)
	assert.Len(t, plan.Insert, 2)
	assert.Len(t, plan.Delete, 1)
}

func TestDiffRejectsRepeatedKeys(t *testing.T) {
	_, err := Diff([]rec{{Key: "a"}, {Key: "a"}}, nil, recKey, adoptRecID)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Diff(nil, []rec{{ID: "1", Key: "a"}, {ID: "2", Key: "a"}}, recKey, adoptRecID)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	desired := []rec{{Key: "a"}}
	current := []rec{{ID: "1", Key: "a"}}
	_, err := Diff(desired, current, recKey, adoptRecID)
	require.NoError(t, err)
	assert.Equal(t, "", desired[0].ID)
}

func TestDiffPartitionsEveryRecord(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		var desired, current []rec
		want := map[string]bool{}
		have := map[string]bool{}
		for i := 0; i < 20; i++ {
			k := fmt.Sprintf("k%d", i)
			if rng.Intn(2) == 0 {
				desired = append(desired, rec{Key: k})
				want[k] = true
			}
			if rng.Intn(2) == 0 {
				current = append(current, rec{ID: "id-" + k, Key: k})
				have[k] = true
			}
		}

		plan, err := Diff(desired, current, recKey, adoptRecID)
		require.NoError(t, err)
		require.Equal(t, len(desired), len(plan.Insert)+len(plan.Update))
		require.Equal(t, len(current), len(plan.Delete)+len(plan.Update))
		for _, r := range plan.Insert {
			require.False(t, have[r.Key])
		}
		for _, r := range plan.Update {
			require.True(t, have[r.Key])
			require.Equal(t, "id-"+r.Key, r.ID)
		}
		for _, r := range plan.Delete {
			require.False(t, want[r.Key])
		}
	}
}

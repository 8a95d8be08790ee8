package engine

// Plan is the three-way split of a desired collection against the stored one.
type Plan[T any] struct {
	Insert []T
	Update []T
	Delete []T
}

func (p Plan[T]) Empty() bool {
	return len(p.Insert) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Diff matches desired against current by keyOf. A desired record whose key
// matches a current record is an update and adopt copies the stored identity
// onto it; unmatched desired records are inserts and unmatched current
// records are deletes. Records for which keyOf reports no key never match.
// Updates follow desired order, deletes follow current order.
//
// Keys must be unique on both sides; a repeated key is rejected with an
// InvalidError rather than matched arbitrarily.
func Diff[T any, K comparable](desired, current []T, keyOf func(T) (K, bool), adopt func(dst *T, src T)) (Plan[T], error) {
	stored := make(map[K]int, len(current))
	for i, rec := range current {
		key, ok := keyOf(rec)
		if !ok {
			continue
		}
		if _, dup := stored[key]; dup {
			return Plan[T]{}, invalidf("stored records share key %v", key)
		}
		stored[key] = i
	}

	var plan Plan[T]
	matched := make([]bool, len(current))
	seen := make(map[K]struct{}, len(desired))
	for _, rec := range desired {
		key, ok := keyOf(rec)
		if !ok {
			plan.Insert = append(plan.Insert, rec)
			continue
		}
		if _, dup := seen[key]; dup {
			return Plan[T]{}, invalidf("submitted records share key %v", key)
		}
		seen[key] = struct{}{}

		i, found := stored[key]
		if !found {
			plan.Insert = append(plan.Insert, rec)
			continue
		}
		matched[i] = true
		if adopt != nil {
			adopt(&rec, current[i])
		}
		plan.Update = append(plan.Update, rec)
	}

	for i, rec := range current {
		if !matched[i] {
			plan.Delete = append(plan.Delete, rec)
		}
	}
	return plan, nil
}

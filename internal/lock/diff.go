package lock

import "time"

// statesEqual is the dirty-check comparator: a write is skipped only when
// every tracked field is unchanged. The two list-valued evaluation fields are
// compared as order-insensitive sets; everything else is exact. UpdatedAt is
// bookkeeping and excluded.
func statesEqual(a, b *State) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.SourceID != b.SourceID ||
		a.Locked != b.Locked ||
		a.Holder != b.Holder ||
		a.Status != b.Status ||
		a.CustomStatus != b.CustomStatus {
		return false
	}
	if !timesEqual(a.ClaimedAt, b.ClaimedAt) {
		return false
	}
	return evaluationsEqual(a.Evaluation, b.Evaluation)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func evaluationsEqual(a, b *Evaluation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Score != b.Score || a.Summary != b.Summary || a.Notes != b.Notes {
		return false
	}
	if len(a.SubScores) != len(b.SubScores) {
		return false
	}
	for k, v := range a.SubScores {
		if bv, ok := b.SubScores[k]; !ok || bv != v {
			return false
		}
	}
	return stringSetsEqual(a.Strengths, b.Strengths) &&
		stringSetsEqual(a.Concerns, b.Concerns)
}

// stringSetsEqual compares two string lists as sets, ignoring order and
// duplicates.
func stringSetsEqual(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, s := range a {
		as[s] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, s := range b {
		bs[s] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if _, ok := bs[s]; !ok {
			return false
		}
	}
	return true
}

// applyListDelta merges a desired membership into the current list by delta:
// retained items keep their current positions, removed items are dropped, and
// additions are appended in the desired order. Storage identifiers for
// unrelated items stay stable across updates.
func applyListDelta(current, desired []string) []string {
	want := make(map[string]struct{}, len(desired))
	for _, s := range desired {
		want[s] = struct{}{}
	}

	out := make([]string, 0, len(desired))
	have := make(map[string]struct{}, len(current))
	for _, s := range current {
		if _, ok := want[s]; ok {
			if _, dup := have[s]; !dup {
				out = append(out, s)
				have[s] = struct{}{}
			}
		}
	}
	for _, s := range desired {
		if _, ok := have[s]; !ok {
			out = append(out, s)
			have[s] = struct{}{}
		}
	}
	return out
}

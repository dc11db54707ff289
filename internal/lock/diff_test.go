package lock

import (
	"testing"
	"time"
)

func TestStatesEqual(t *testing.T) {
	now := time.Now()
	base := func() *State {
		return &State{
			SourceID:  "rec-1",
			Locked:    true,
			Holder:    "mgrA",
			ClaimedAt: &now,
			Status:    StatusLocked,
			Evaluation: &Evaluation{
				Score:     80,
				SubScores: map[string]int{"tech": 9},
				Strengths: []string{"go", "sql"},
				Concerns:  []string{"remote only"},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*State)
		equal  bool
	}{
		{"identical", func(s *State) {}, true},
		{"reordered strengths", func(s *State) {
			s.Evaluation.Strengths = []string{"sql", "go"}
		}, true},
		{"different holder", func(s *State) { s.Holder = "mgrB" }, false},
		{"different locked", func(s *State) { s.Locked = false }, false},
		{"different score", func(s *State) { s.Evaluation.Score = 81 }, false},
		{"different sub-score", func(s *State) {
			s.Evaluation.SubScores["tech"] = 8
		}, false},
		{"extra strength", func(s *State) {
			s.Evaluation.Strengths = append(s.Evaluation.Strengths, "k8s")
		}, false},
		{"nil claimed at", func(s *State) { s.ClaimedAt = nil }, false},
		{"nil evaluation", func(s *State) { s.Evaluation = nil }, false},
		{"different custom status", func(s *State) { s.CustomStatus = "x" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := base(), base()
			tt.mutate(b)
			if got := statesEqual(a, b); got != tt.equal {
				t.Errorf("statesEqual = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestStatesEqual_UpdatedAtIgnored(t *testing.T) {
	a := &State{SourceID: "rec-1", Status: StatusOpen, UpdatedAt: time.Now()}
	b := &State{SourceID: "rec-1", Status: StatusOpen, UpdatedAt: time.Now().Add(time.Hour)}
	if !statesEqual(a, b) {
		t.Error("UpdatedAt is bookkeeping and must not affect equality")
	}
}

func TestApplyListDelta(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		desired []string
		want    []string
	}{
		{"no change", []string{"a", "b"}, []string{"a", "b"}, []string{"a", "b"}},
		{"reorder is no change", []string{"a", "b"}, []string{"b", "a"}, []string{"a", "b"}},
		{"addition appended", []string{"a"}, []string{"a", "b"}, []string{"a", "b"}},
		{"removal", []string{"a", "b", "c"}, []string{"a", "c"}, []string{"a", "c"}},
		{"mixed", []string{"a", "b", "c"}, []string{"d", "c", "a"}, []string{"a", "c", "d"}},
		{"from empty", nil, []string{"x"}, []string{"x"}},
		{"to empty", []string{"x"}, nil, []string{}},
		{"duplicates collapsed", []string{"a", "a"}, []string{"a"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyListDelta(tt.current, tt.desired)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

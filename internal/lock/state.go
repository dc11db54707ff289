// Package lock implements the reviewer claim/release state machine over
// candidate records: exclusive holder-scoped locks, an orthogonal status
// dimension, and an append-only history of every accepted transition.
package lock

import "time"

// Status is the review status of a record. It changes independently of the
// locked boolean so callers that only track status keep working.
type Status string

const (
	StatusOpen        Status = "OPEN"
	StatusLocked      Status = "LOCKED"
	StatusShortlisted Status = "SHORTLISTED"
	StatusRejected    Status = "REJECTED"
	StatusCustom      Status = "CUSTOM"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusLocked, StatusShortlisted, StatusRejected, StatusCustom:
		return true
	}
	return false
}

// Evaluation is the reviewer's assessment attached to a claim.
type Evaluation struct {
	Score     int            `json:"score"`
	Summary   string         `json:"summary,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	SubScores map[string]int `json:"sub_scores,omitempty"`
	Strengths []string       `json:"strengths,omitempty"`
	Concerns  []string       `json:"concerns,omitempty"`
}

// State is the lock row for one record. Created lazily on the first claim or
// status change, mutated only through the Manager, never deleted.
type State struct {
	SourceID     string      `json:"source_id"`
	Locked       bool        `json:"locked"`
	Holder       string      `json:"holder,omitempty"`
	ClaimedAt    *time.Time  `json:"claimed_at,omitempty"`
	Status       Status      `json:"status"`
	CustomStatus string      `json:"custom_status,omitempty"`
	Evaluation   *Evaluation `json:"evaluation,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// HistoryEntry records one accepted state transition. History is append-only;
// the first ever transition records the previous status as empty.
type HistoryEntry struct {
	ID             string    `json:"id"`
	SourceID       string    `json:"source_id"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	PreviousCustom string    `json:"previous_custom,omitempty"`
	NewStatus      Status    `json:"new_status"`
	NewCustom      string    `json:"new_custom,omitempty"`
	ChangedBy      string    `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
	Comment        string    `json:"comment,omitempty"`
}

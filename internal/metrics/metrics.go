// Package metrics builds per-run reports for the CLI. These are one-shot
// summaries of a single match or reconciliation run, distinct from the
// cumulative service metrics exposed on /metrics.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/talentsync/talentsync/internal/match"
	"github.com/talentsync/talentsync/internal/reconcile"
)

// MatchRunMetrics collects statistics for one match request.
type MatchRunMetrics struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ms,omitempty"`
	LLMMode    string        `json:"llm_mode"` // "llm:<provider>" or "degraded"
	QueryChars int           `json:"query_chars"`
	Limit      int           `json:"limit"`
	Results    int           `json:"results"`
	Degraded   int           `json:"degraded"`
	TopScore   int           `json:"top_score"`
	MeanScore  float64       `json:"mean_score"`
}

// NewMatchRun starts tracking a match request.
func NewMatchRun(queryChars, limit int) *MatchRunMetrics {
	return &MatchRunMetrics{
		StartedAt:  time.Now(),
		QueryChars: queryChars,
		Limit:      limit,
	}
}

// Collect computes result-side statistics.
func (m *MatchRunMetrics) Collect(results []match.Result) {
	m.Results = len(results)

	var sum int
	for _, r := range results {
		if r.Explanation == match.ExplanationUnavailable || r.Explanation == match.ExplanationTimedOut {
			m.Degraded++
		}
		if r.Score > m.TopScore {
			m.TopScore = r.Score
		}
		sum += r.Score
	}
	if len(results) > 0 {
		m.MeanScore = float64(sum) / float64(len(results))
	}
}

// Finish marks the run as complete.
func (m *MatchRunMetrics) Finish() {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
}

// JSON returns the report as indented JSON.
func (m *MatchRunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// PrintSummary writes a human-readable summary.
func (m *MatchRunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║         MATCH RUN REPORT             ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s ║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ LLM Mode:    %-23s ║\n", m.LLMMode)
	fmt.Fprintf(w, "║ Query:       %-5d chars             ║\n", m.QueryChars)
	fmt.Fprintf(w, "║ Results:     %-3d (of %-3d requested)  ║\n", m.Results, m.Limit)
	fmt.Fprintf(w, "║ Degraded:    %-23d ║\n", m.Degraded)
	fmt.Fprintf(w, "║ Top score:   %-23d ║\n", m.TopScore)
	fmt.Fprintf(w, "║ Mean score:  %-23.1f ║\n", m.MeanScore)
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// SyncRunMetrics wraps a reconciliation outcome for report printing.
type SyncRunMetrics struct {
	Outcome reconcile.Outcome `json:"outcome"`
}

// NewSyncRun wraps a finished reconciliation outcome.
func NewSyncRun(outcome reconcile.Outcome) *SyncRunMetrics {
	return &SyncRunMetrics{Outcome: outcome}
}

// JSON returns the report as indented JSON.
func (m *SyncRunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// PrintSummary writes a human-readable summary.
func (m *SyncRunMetrics) PrintSummary(w io.Writer) {
	o := m.Outcome
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║         SYNC RUN REPORT              ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s ║\n", o.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Scanned:     %-23d ║\n", o.RecordsScanned)
	fmt.Fprintf(w, "║ Added:       %-23d ║\n", o.MissingAdded)
	fmt.Fprintf(w, "║ Deduped:     %-23d ║\n", o.DuplicatesRemoved)
	fmt.Fprintf(w, "║ Orphans:     %-23d ║\n", o.OrphansRemoved)
	fmt.Fprintf(w, "║ Skipped:     %-23d ║\n", o.Skipped)
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

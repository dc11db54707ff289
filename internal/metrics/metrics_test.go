package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/talentsync/talentsync/internal/match"
	"github.com/talentsync/talentsync/internal/reconcile"
	"github.com/talentsync/talentsync/internal/record"
)

func TestMatchRun_Collect(t *testing.T) {
	m := NewMatchRun(120, 5)
	m.LLMMode = "llm:openai"

	m.Collect([]match.Result{
		{Record: record.Record{ID: "a"}, Score: 90, Explanation: "strong overlap"},
		{Record: record.Record{ID: "b"}, Score: 40, Explanation: match.ExplanationUnavailable},
		{Record: record.Record{ID: "c"}, Score: 20, Explanation: match.ExplanationTimedOut},
	})
	m.Finish()

	if m.Results != 3 {
		t.Errorf("expected 3 results, got %d", m.Results)
	}
	if m.Degraded != 2 {
		t.Errorf("expected 2 degraded, got %d", m.Degraded)
	}
	if m.TopScore != 90 {
		t.Errorf("expected top score 90, got %d", m.TopScore)
	}
	if m.MeanScore != 50 {
		t.Errorf("expected mean score 50, got %f", m.MeanScore)
	}
	if m.Duration <= 0 {
		t.Error("expected positive duration after Finish")
	}
}

func TestMatchRun_EmptyResults(t *testing.T) {
	m := NewMatchRun(10, 5)
	m.Collect(nil)
	m.Finish()

	if m.MeanScore != 0 || m.TopScore != 0 {
		t.Errorf("expected zero scores for empty run, got mean=%f top=%d", m.MeanScore, m.TopScore)
	}
}

func TestMatchRun_JSON(t *testing.T) {
	m := NewMatchRun(10, 3)
	m.LLMMode = "degraded"
	m.Collect([]match.Result{{Score: 50, Explanation: "ok"}})
	m.Finish()

	data, err := m.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["llm_mode"] != "degraded" {
		t.Errorf("expected llm_mode degraded, got %v", decoded["llm_mode"])
	}
}

func TestMatchRun_PrintSummary(t *testing.T) {
	m := NewMatchRun(10, 3)
	m.LLMMode = "llm:openai"
	m.Collect([]match.Result{{Score: 75, Explanation: "ok"}})
	m.Finish()

	var buf bytes.Buffer
	m.PrintSummary(&buf)

	out := buf.String()
	if !strings.Contains(out, "MATCH RUN REPORT") {
		t.Error("summary missing title")
	}
	if !strings.Contains(out, "llm:openai") {
		t.Error("summary missing LLM mode")
	}
}

func TestSyncRun_PrintSummary(t *testing.T) {
	report := NewSyncRun(reconcile.Outcome{
		MissingAdded:      3,
		DuplicatesRemoved: 1,
		OrphansRemoved:    2,
		RecordsScanned:    10,
		Duration:          42 * time.Millisecond,
	})

	var buf bytes.Buffer
	report.PrintSummary(&buf)

	out := buf.String()
	if !strings.Contains(out, "SYNC RUN REPORT") {
		t.Error("summary missing title")
	}
	if !strings.Contains(out, "Scanned:     10") {
		t.Errorf("summary missing scanned count: %s", out)
	}
}

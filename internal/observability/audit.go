// Package observability provides audit logging, OpenTelemetry tracing and
// Prometheus-format metrics for talentsync.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventMatchRequest  AuditEventType = "match.request"
	AuditEventMatchComplete AuditEventType = "match.complete"
	AuditEventSyncStart     AuditEventType = "sync.start"
	AuditEventSyncComplete  AuditEventType = "sync.complete"
	AuditEventLockClaim     AuditEventType = "lock.claim"
	AuditEventLockRelease   AuditEventType = "lock.release"
	AuditEventStatusChange  AuditEventType = "lock.status"
	AuditEventLLMRequest    AuditEventType = "llm.request"
	AuditEventLLMError      AuditEventType = "llm.error"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   AuditEventType         `json:"event_type"`
	SessionID   string                 `json:"session_id"`
	SourceID    string                 `json:"source_id,omitempty"`
	Actor       string                 `json:"actor,omitempty"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration_ms,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	ErrorDetail string                 `json:"error_detail,omitempty"`
}

// AuditLogger handles audit event logging.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: sessionID,
		enabled:   config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogMatchRequest logs an incoming match request.
func (l *AuditLogger) LogMatchRequest(ctx context.Context, queryLen, limit int) {
	l.Log(&AuditEvent{
		EventType: AuditEventMatchRequest,
		Success:   true,
		Message:   fmt.Sprintf("Match request for top %d", limit),
		Details: map[string]interface{}{
			"query_length": queryLen,
			"limit":        limit,
		},
	})
}

// LogMatchComplete logs a finished match request.
func (l *AuditLogger) LogMatchComplete(ctx context.Context, results, degraded int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventMatchComplete,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("Match returned %d results", results),
		Details: map[string]interface{}{
			"results":  results,
			"degraded": degraded,
		},
	})
}

// LogSyncStart logs the start of a reconciliation sweep.
func (l *AuditLogger) LogSyncStart(ctx context.Context, records int) {
	l.Log(&AuditEvent{
		EventType: AuditEventSyncStart,
		Success:   true,
		Message:   fmt.Sprintf("Reconciliation started over %d records", records),
	})
}

// LogSyncComplete logs a finished reconciliation sweep.
func (l *AuditLogger) LogSyncComplete(ctx context.Context, missingAdded, duplicatesRemoved, orphansRemoved int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventSyncComplete,
		Success:   true,
		Duration:  duration,
		Message:   "Reconciliation finished",
		Details: map[string]interface{}{
			"missing_added":      missingAdded,
			"duplicates_removed": duplicatesRemoved,
			"orphans_removed":    orphansRemoved,
		},
	})
}

// LogLockClaim logs a successful claim.
func (l *AuditLogger) LogLockClaim(ctx context.Context, sourceID, holder string) {
	l.Log(&AuditEvent{
		EventType: AuditEventLockClaim,
		SourceID:  sourceID,
		Actor:     holder,
		Success:   true,
		Message:   fmt.Sprintf("Record %s claimed by %s", sourceID, holder),
	})
}

// LogLockRelease logs a successful release.
func (l *AuditLogger) LogLockRelease(ctx context.Context, sourceID, holder string) {
	l.Log(&AuditEvent{
		EventType: AuditEventLockRelease,
		SourceID:  sourceID,
		Actor:     holder,
		Success:   true,
		Message:   fmt.Sprintf("Record %s released by %s", sourceID, holder),
	})
}

// LogStatusChange logs an accepted status transition.
func (l *AuditLogger) LogStatusChange(ctx context.Context, sourceID, status, customStatus, changedBy string) {
	event := &AuditEvent{
		EventType: AuditEventStatusChange,
		SourceID:  sourceID,
		Actor:     changedBy,
		Success:   true,
		Message:   fmt.Sprintf("Record %s status set to %s", sourceID, status),
	}
	if customStatus != "" {
		event.Details = map[string]interface{}{"custom_status": customStatus}
	}
	l.Log(event)
}

// LogLLMError logs a language-model failure.
func (l *AuditLogger) LogLLMError(ctx context.Context, provider, model string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		Success:     false,
		Message:     fmt.Sprintf("LLM error from %s/%s", provider, model),
		ErrorDetail: err.Error(),
		Details: map[string]interface{}{
			"provider": provider,
			"model":    model,
		},
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

// Global audit logger instance
var globalAuditLogger *AuditLogger
var auditOnce sync.Once

// InitGlobalAuditLogger initializes the global audit logger.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	auditOnce.Do(func() {
		globalAuditLogger, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if globalAuditLogger == nil {
		return &AuditLogger{enabled: false}
	}
	return globalAuditLogger
}

// Package audit provides the session-scoped, append-only decision trail of a screening assessment.
package audit

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cancer-risk-screening/internal/domain"
)

// Entry is the common header of every trail entry.
type Entry struct {
	ID        string    `json:"id"`
	Sequence  uint64    `json:"sequence"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry records a decision message.
type LogEntry struct {
	Entry
	Message string `json:"message"`
}

// ChangeEntry records a modification to a pipeline artefact.
type ChangeEntry struct {
	Entry
	Change domain.Change `json:"change"`
}

// ErrorEntry records a reported error. Code is set for pipeline errors and issues.
type ErrorEntry struct {
	Entry
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Snapshot is a copy of the trail contents.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	Logs      []LogEntry     `json:"logs"`
	Changes   []ChangeEntry  `json:"changes"`
	Errors    []ErrorEntry   `json:"errors"`
	Metrics   map[string]any `json:"metrics"`
}

// Trail is an append-only audit log for one assessment session. Entries are never mutated or
// removed. A Trail is safe for concurrent use, but each session should own its own Trail.
type Trail struct {
	mu        sync.Mutex
	logger    *logrus.Logger
	now       func() time.Time
	sessionID string
	seq       uint64
	last      time.Time
	logs      []LogEntry
	changes   []ChangeEntry
	errs      []ErrorEntry
	metrics   map[string]any
}

// Option configures a Trail.
type Option func(*Trail)

// WithSessionID sets the session ID instead of generating one.
func WithSessionID(id string) Option {
	return func(t *Trail) {
		t.sessionID = id
	}
}

// WithClock sets the clock used to timestamp entries.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		t.now = now
	}
}

// NewTrail creates an empty trail. Entries are mirrored to logger at debug level, errors at warn.
func NewTrail(logger *logrus.Logger, opts ...Option) *Trail {
	t := &Trail{
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		sessionID: uuid.New().String(),
		logs:      []LogEntry{},
		changes:   []ChangeEntry{},
		errs:      []ErrorEntry{},
		metrics:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the session the trail belongs to.
func (t *Trail) SessionID() string {
	return t.sessionID
}

// Log appends a decision message.
func (t *Trail) Log(message string) {
	t.mu.Lock()
	entry := LogEntry{Entry: t.nextEntry(), Message: message}
	t.logs = append(t.logs, entry)
	t.mu.Unlock()

	t.logger.WithFields(t.fields(entry.Entry)).Debug(message)
}

// RecordChange appends a change record.
func (t *Trail) RecordChange(change domain.Change) {
	t.mu.Lock()
	entry := ChangeEntry{Entry: t.nextEntry(), Change: change}
	t.changes = append(t.changes, entry)
	t.mu.Unlock()

	fields := t.fields(entry.Entry)
	fields["entity"] = change.Entity
	fields["field"] = change.Field
	fields["from"] = change.From
	fields["to"] = change.To
	t.logger.WithFields(fields).Debug("Recorded change")
}

// ReportError appends an error record. Nil errors are ignored.
func (t *Trail) ReportError(err error) {
	if err == nil {
		return
	}

	t.mu.Lock()
	entry := ErrorEntry{Entry: t.nextEntry(), Code: errorCode(err), Message: err.Error()}
	t.errs = append(t.errs, entry)
	t.mu.Unlock()

	fields := t.fields(entry.Entry)
	if entry.Code != "" {
		fields["code"] = entry.Code
	}
	t.logger.WithFields(fields).WithError(err).Warn("Reported error")
}

// SetMetric sets a session metric. Later values for the same key replace earlier ones.
func (t *Trail) SetMetric(key string, value any) {
	t.mu.Lock()
	t.metrics[key] = value
	t.mu.Unlock()
}

// Snapshot returns a copy of every log, change, error and metric.
func (t *Trail) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	metrics := make(map[string]any, len(t.metrics))
	for k, v := range t.metrics {
		metrics[k] = v
	}

	return Snapshot{
		SessionID: t.sessionID,
		Logs:      append([]LogEntry{}, t.logs...),
		Changes:   append([]ChangeEntry{}, t.changes...),
		Errors:    append([]ErrorEntry{}, t.errs...),
		Metrics:   metrics,
	}
}

// Logs returns a copy of the log entries only.
func (t *Trail) Logs() []LogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]LogEntry{}, t.logs...)
}

// nextEntry stamps a new entry. Timestamps never go backwards within a trail. Callers hold mu.
func (t *Trail) nextEntry() Entry {
	t.seq++
	ts := t.now()
	if ts.Before(t.last) {
		ts = t.last
	}
	t.last = ts

	return Entry{
		ID:        uuid.New().String(),
		Sequence:  t.seq,
		SessionID: t.sessionID,
		Timestamp: ts,
	}
}

func (t *Trail) fields(e Entry) logrus.Fields {
	return logrus.Fields{
		"session_id": e.SessionID,
		"sequence":   e.Sequence,
	}
}

func errorCode(err error) string {
	var pipelineErr *domain.PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Code
	}
	var issue domain.Issue
	if errors.As(err, &issue) {
		return issue.Code
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return domain.ErrValidation
	}
	return ""
}

// Trail satisfies the recorder interface used by pipeline stages.
var _ domain.AuditRecorder = (*Trail)(nil)

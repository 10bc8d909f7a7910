package core

import (
	"context"
)

// OracleClient defines the transport-level interface to an external text
// classification service. Implementations return the raw response text;
// parsing and validation happen elsewhere.
type OracleClient interface {
	// Generate sends a rendered prompt and returns the raw response text
	Generate(ctx context.Context, prompt string) (string, error)
}

// MessageStore defines the interface to the backing record store.
type MessageStore interface {
	// ListUndecided returns messages lacking a decision, most recent first
	ListUndecided(ctx context.Context, limit int) ([]*Message, error)

	// ListDecided returns messages that already carry a decision
	ListDecided(ctx context.Context) ([]*Message, error)

	// SetFingerprint stores a computed fingerprint for a message
	SetFingerprint(ctx context.Context, id int64, fingerprint string) error

	// SaveClassification writes a classification record for a message;
	// labels and summary use merge-if-absent semantics
	SaveClassification(ctx context.Context, id int64, rec ClassificationRecord) error

	// UpdateDecision rewrites only the decision and reason of a message
	UpdateDecision(ctx context.Context, id int64, decision Decision, reason string) error

	// PropagateClassification copies rec into every message sharing the
	// fingerprint, field-if-absent, excluding the given message id.
	// It returns the number of affected rows.
	PropagateClassification(ctx context.Context, fingerprint string, exceptID int64, rec ClassificationRecord) (int64, error)

	// DecisionCounts returns the number of decided messages per decision value
	DecisionCounts(ctx context.Context) (map[Decision]int64, error)

	// Flush commits any pending writes
	Flush(ctx context.Context) error
}

// DecisionLog receives one entry per processed message. Implementations
// must flush after each write; the log is never read back.
type DecisionLog interface {
	Log(runID string, msg *Message, rec ClassificationRecord) error
	Close() error
}

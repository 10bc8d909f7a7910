package core

import (
	"time"

	"github.com/pelissiernicolas/mail-ai-local/internal/decision"
)

// Decision aliases the shared disposition type so callers of the core
// do not have to juggle two vocabularies.
type Decision = decision.Decision

const (
	DecisionKeep    = decision.Keep
	DecisionArchive = decision.Archive
	DecisionDelete  = decision.Delete
)

// Bounds applied to classification fields before persistence.
const (
	MaxReasonLen   = 300
	MaxSummaryLen  = 1000
	MaxCategoryLen = 120
	MaxLabels      = 5
)

// Message represents an ingested email message
type Message struct {
	ID             int64
	MsgID          string
	From           string
	Subject        string
	Body           string
	Date           time.Time
	SizeBytes      int64
	HasAttachments bool
	Fingerprint    string
	Record         ClassificationRecord
}

// ClassificationRecord holds the classification fields attached to a message.
// All fields start empty at ingestion and are filled by the decider.
type ClassificationRecord struct {
	Decision   Decision
	Reason     string
	Confidence float64
	Labels     []string
	Summary    string
}

// IsDecided reports whether a decision has been recorded.
func (r ClassificationRecord) IsDecided() bool {
	return r.Decision != ""
}

// CallStatus classifies the outcome of one oracle call.
type CallStatus int

const (
	CallSuccess CallStatus = iota
	CallTransportFailure
	CallTimeout
)

// CallOutcome is the result of an oracle call after retries have been
// exhausted. Text is only meaningful when Status is CallSuccess.
type CallOutcome struct {
	Status CallStatus
	Text   string
	Err    error
}

// BatchReport summarizes one ProcessBatch run.
type BatchReport struct {
	RunID      string
	ToProcess  int
	Processed  int
	Propagated int
	Warnings   int
}

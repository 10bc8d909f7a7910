package jsonl

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelissiernicolas/mail-ai-local/internal/core"
)

// DecisionLog appends one JSON line per processed message to a file.
// Entries are flushed as they are written; the log is observational only
// and never read back.
type DecisionLog struct {
	file *os.File
}

type entry struct {
	RunID      string   `json:"run_id"`
	ID         int64    `json:"id"`
	From       string   `json:"from"`
	Subject    string   `json:"subject"`
	Decision   string   `json:"decision"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Labels     []string `json:"labels"`
	Summary    string   `json:"summary,omitempty"`
}

// New opens the log file for appending, creating it when absent.
func New(path string) (*DecisionLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	return &DecisionLog{file: file}, nil
}

// Log writes one entry and syncs it to disk.
func (l *DecisionLog) Log(runID string, msg *core.Message, rec core.ClassificationRecord) error {
	line, err := json.Marshal(entry{
		RunID:      runID,
		ID:         msg.ID,
		From:       msg.From,
		Subject:    msg.Subject,
		Decision:   string(rec.Decision),
		Confidence: rec.Confidence,
		Reason:     rec.Reason,
		Labels:     rec.Labels,
		Summary:    rec.Summary,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal decision log entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write decision log entry: %w", err)
	}
	return l.file.Sync()
}

// Close closes the underlying file.
func (l *DecisionLog) Close() error {
	return l.file.Close()
}

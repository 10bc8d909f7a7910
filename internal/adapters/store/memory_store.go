package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pelissiernicolas/mail-ai-local/internal/core"
)

// MemoryStore is an in-memory implementation of the MessageStore
// interface, used in tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[int64]*core.Message
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[int64]*core.Message),
	}
}

// Add inserts or replaces a message.
func (s *MemoryStore) Add(msg *core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *msg
	s.messages[msg.ID] = &copied
}

// Get returns a copy of the message with the given id.
func (s *MemoryStore) Get(id int64) (core.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return core.Message{}, false
	}
	return *msg, true
}

// ListUndecided returns messages lacking a decision, most recent first.
func (s *MemoryStore) ListUndecided(ctx context.Context, limit int) ([]*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []*core.Message
	for _, msg := range s.messages {
		if !msg.Record.IsDecided() {
			copied := *msg
			msgs = append(msgs, &copied)
		}
	}
	sortByRecency(msgs)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// ListDecided returns messages that already carry a decision.
func (s *MemoryStore) ListDecided(ctx context.Context) ([]*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []*core.Message
	for _, msg := range s.messages {
		if msg.Record.IsDecided() {
			copied := *msg
			msgs = append(msgs, &copied)
		}
	}
	sortByRecency(msgs)
	return msgs, nil
}

func sortByRecency(msgs []*core.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].Date.After(msgs[j].Date)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// SetFingerprint stores a computed fingerprint for a message.
func (s *MemoryStore) SetFingerprint(ctx context.Context, id int64, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		msg.Fingerprint = fp
	}
	return nil
}

// SaveClassification writes the record for a message. Labels and summary
// are merged only when the stored value is still absent.
func (s *MemoryStore) SaveClassification(ctx context.Context, id int64, rec core.ClassificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil
	}
	msg.Record.Decision = rec.Decision
	msg.Record.Reason = rec.Reason
	msg.Record.Confidence = rec.Confidence
	if len(msg.Record.Labels) == 0 {
		msg.Record.Labels = append([]string(nil), rec.Labels...)
	}
	if msg.Record.Summary == "" {
		msg.Record.Summary = rec.Summary
	}
	return nil
}

// UpdateDecision rewrites only the decision and reason of a message.
func (s *MemoryStore) UpdateDecision(ctx context.Context, id int64, decision core.Decision, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		msg.Record.Decision = decision
		msg.Record.Reason = reason
	}
	return nil
}

// PropagateClassification copies rec into every undecided message sharing
// the fingerprint, filling only fields that are still unset.
func (s *MemoryStore) PropagateClassification(ctx context.Context, fp string, exceptID int64, rec core.ClassificationRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, msg := range s.messages {
		if msg.Fingerprint != fp || msg.ID == exceptID || msg.Record.IsDecided() {
			continue
		}
		msg.Record.Decision = rec.Decision
		if msg.Record.Reason == "" {
			msg.Record.Reason = rec.Reason
		}
		if msg.Record.Confidence == 0 {
			msg.Record.Confidence = rec.Confidence
		}
		if len(msg.Record.Labels) == 0 {
			msg.Record.Labels = append([]string(nil), rec.Labels...)
		}
		if msg.Record.Summary == "" {
			msg.Record.Summary = rec.Summary
		}
		n++
	}
	return n, nil
}

// DecisionCounts returns the number of decided messages per decision value.
func (s *MemoryStore) DecisionCounts(ctx context.Context) (map[core.Decision]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[core.Decision]int64)
	for _, msg := range s.messages {
		if msg.Record.IsDecided() {
			counts[msg.Record.Decision]++
		}
	}
	return counts, nil
}

// Flush is a no-op for the in-memory store.
func (s *MemoryStore) Flush(ctx context.Context) error {
	return nil
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mail.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertEmail(t *testing.T, s *SQLiteStore, from, subject string, ts int64) int64 {
	t.Helper()
	res, err := s.db.Exec(
		`INSERT INTO emails (from_addr, subject, body, ts) VALUES (?, ?, ?, ?)`,
		from, subject, "body", ts)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := insertEmail(t, s, "promo@shop.example", "Weekly deals", 100)
	newer := insertEmail(t, s, "alice@example.com", "lunch", 200)

	msgs, err := s.ListUndecided(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, newer, msgs[0].ID)
	assert.Equal(t, older, msgs[1].ID)
	assert.Equal(t, "alice@example.com", msgs[0].From)
	assert.False(t, msgs[0].Record.IsDecided())

	rec := core.ClassificationRecord{
		Decision:   core.DecisionDelete,
		Reason:     "rule: promo subject",
		Confidence: 0.9,
		Labels:     []string{"Promotions", "Newsletter"},
		Summary:    "Weekly promotional mail.",
	}
	require.NoError(t, s.SetFingerprint(ctx, older, "fp1"))
	require.NoError(t, s.SaveClassification(ctx, older, rec))
	require.NoError(t, s.Flush(ctx))

	msgs, err = s.ListUndecided(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, newer, msgs[0].ID)

	decided, err := s.ListDecided(ctx)
	require.NoError(t, err)
	require.Len(t, decided, 1)
	assert.Equal(t, older, decided[0].ID)
	assert.Equal(t, "fp1", decided[0].Fingerprint)
	assert.Equal(t, core.DecisionDelete, decided[0].Record.Decision)
	assert.Equal(t, 0.9, decided[0].Record.Confidence)
	assert.Equal(t, []string{"Promotions", "Newsletter"}, decided[0].Record.Labels)
	assert.Equal(t, "Weekly promotional mail.", decided[0].Record.Summary)
}

func TestSQLiteStoreSaveKeepsExistingLabelsAndSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := insertEmail(t, s, "a@example.com", "s", 1)
	_, err := s.db.Exec(`UPDATE emails SET auto_labels = 'Factures', summary = 'ingested summary' WHERE id = ?`, id)
	require.NoError(t, err)

	rec := core.ClassificationRecord{
		Decision: core.DecisionKeep, Reason: "invoice", Confidence: 0.8,
		Labels: []string{"Commandes"}, Summary: "new summary",
	}
	require.NoError(t, s.SaveClassification(ctx, id, rec))
	require.NoError(t, s.Flush(ctx))

	decided, err := s.ListDecided(ctx)
	require.NoError(t, err)
	require.Len(t, decided, 1)
	assert.Equal(t, []string{"Factures"}, decided[0].Record.Labels)
	assert.Equal(t, "ingested summary", decided[0].Record.Summary)
}

func TestSQLiteStorePropagateFillsOnlyUndecided(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	source := insertEmail(t, s, "promo@shop.example", "Weekly deals", 1)
	sibling := insertEmail(t, s, "promo@shop.example", "Weekly deals", 2)
	pinned := insertEmail(t, s, "promo@shop.example", "Weekly deals", 3)
	other := insertEmail(t, s, "alice@example.com", "lunch", 4)

	for _, id := range []int64{source, sibling, pinned} {
		require.NoError(t, s.SetFingerprint(ctx, id, "fp1"))
	}
	require.NoError(t, s.SetFingerprint(ctx, other, "fp2"))
	require.NoError(t, s.UpdateDecision(ctx, pinned, core.DecisionKeep, "pinned by user"))

	rec := core.ClassificationRecord{Decision: core.DecisionDelete, Reason: "bulk", Confidence: 0.9}
	n, err := s.PropagateClassification(ctx, "fp1", source, rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, s.Flush(ctx))

	decided, err := s.ListDecided(ctx)
	require.NoError(t, err)
	byID := make(map[int64]*core.Message)
	for _, msg := range decided {
		byID[msg.ID] = msg
	}
	require.Contains(t, byID, sibling)
	assert.Equal(t, core.DecisionDelete, byID[sibling].Record.Decision)
	assert.Equal(t, "bulk", byID[sibling].Record.Reason)
	assert.Equal(t, core.DecisionKeep, byID[pinned].Record.Decision)
	assert.NotContains(t, byID, source)
	assert.NotContains(t, byID, other)
}

func TestSQLiteStoreDecisionCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	decisions := []core.Decision{core.DecisionKeep, core.DecisionDelete, core.DecisionDelete}
	ids := make([]int64, len(decisions))
	for i := range decisions {
		ids[i] = insertEmail(t, s, "a@example.com", "s", int64(i))
	}
	insertEmail(t, s, "b@example.com", "undecided", 10)
	for i, decision := range decisions {
		require.NoError(t, s.UpdateDecision(ctx, ids[i], decision, "r"))
	}
	require.NoError(t, s.Flush(ctx))

	counts, err := s.DecisionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[core.DecisionKeep])
	assert.Equal(t, int64(2), counts[core.DecisionDelete])
	assert.Zero(t, counts[core.DecisionArchive])
}

func TestSQLiteStoreReopensOlderDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.db")

	s, err := NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	insertEmail(t, s, "a@example.com", "s", 1)
	require.NoError(t, s.Close())

	// the classification columns are added idempotently on reopen
	s, err = NewSQLiteStore(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	msgs, err := s.ListUndecided(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

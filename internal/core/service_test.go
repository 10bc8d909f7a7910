package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/adapters/store"
	"github.com/pelissiernicolas/mail-ai-local/internal/core"
	"github.com/pelissiernicolas/mail-ai-local/internal/fingerprint"
	"github.com/pelissiernicolas/mail-ai-local/internal/rules"
	"github.com/pelissiernicolas/mail-ai-local/internal/utils"
)

type countingClient struct {
	calls int32
	text  string
	err   error
}

func (c *countingClient) Generate(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

func newService(t *testing.T, s core.MessageStore, client core.OracleClient, opts core.ServiceOptions) *core.DeciderService {
	t.Helper()
	logger := zap.NewNop()

	engine, err := rules.NewOverrideEngine(nil)
	require.NoError(t, err)
	heuristics, err := rules.NewHeuristicMatcher(nil, nil)
	require.NoError(t, err)

	var caller *core.OracleCaller
	if client != nil {
		caller = core.NewOracleCaller(client, core.RetryPolicy{MaxAttempts: 1}, 0, logger)
	}
	resolver := core.NewResolver(engine, 0, logger)
	textProc := utils.NewTextProcessor(logger)

	return core.NewDeciderService(s, caller, resolver, heuristics, textProc, nil, opts, logger)
}

func seedMessage(s *store.MemoryStore, id int64, from, subject string, age time.Duration) {
	s.Add(&core.Message{
		ID:      id,
		From:    from,
		Subject: subject,
		Body:    "body of message",
		Date:    time.Now().Add(-age),
	})
}

func TestProcessBatchDecidesAndPropagates(t *testing.T) {
	mem := store.NewMemoryStore()
	seedMessage(mem, 1, "promo@shop.example", "Weekly deals", time.Hour)
	seedMessage(mem, 2, "promo@shop.example", "Weekly deals", 2*time.Hour)
	seedMessage(mem, 3, "promo@shop.example", "weekly   DEALS", 3*time.Hour)
	seedMessage(mem, 4, "alice@example.com", "lunch tomorrow?", time.Minute)

	client := &countingClient{text: `{"decision": "archive", "confidence": 0.8, "reason": "bulk", "category": ["Promotions"]}`}
	svc := newService(t, mem, client, core.ServiceOptions{BatchLimit: 10, BodyClip: 500, DedupEnabled: true})

	report, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.ToProcess)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Propagated)
	assert.Equal(t, 0, report.Warnings)
	assert.NotEmpty(t, report.RunID)

	// one oracle decision per duplicate group, plus the warm-up call
	assert.Equal(t, int32(3), atomic.LoadInt32(&client.calls))

	for _, id := range []int64{1, 2, 3, 4} {
		msg, ok := mem.Get(id)
		require.True(t, ok, "message %d", id)
		assert.True(t, msg.Record.IsDecided(), "message %d", id)
		assert.NotEmpty(t, msg.Fingerprint, "message %d", id)
	}
	msg, _ := mem.Get(2)
	assert.Equal(t, core.DecisionArchive, msg.Record.Decision)
	assert.Equal(t, []string{"Promotions"}, msg.Record.Labels)
}

func TestProcessBatchLeavesNoSiblingUndecided(t *testing.T) {
	mem := store.NewMemoryStore()
	seedMessage(mem, 1, "promo@shop.example", "Weekly deals", time.Hour)
	seedMessage(mem, 2, "promo@shop.example", "Weekly deals", 2*time.Hour)
	seedMessage(mem, 3, "promo@shop.example", "Weekly deals", 3*time.Hour)

	client := &countingClient{text: `{"decision": "archive", "confidence": 0.8}`}
	svc := newService(t, mem, client, core.ServiceOptions{BatchLimit: 10, BodyClip: 500, DedupEnabled: true})

	report, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Propagated)

	// a second run must find the whole group settled
	report, err = svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.ToProcess)
	assert.Equal(t, 0, report.Processed)

	// warm-up plus the single group decision from the first run
	assert.Equal(t, int32(2), atomic.LoadInt32(&client.calls))
}

func TestProcessBatchWithoutDedup(t *testing.T) {
	mem := store.NewMemoryStore()
	seedMessage(mem, 1, "promo@shop.example", "Weekly deals", time.Hour)
	seedMessage(mem, 2, "promo@shop.example", "Weekly deals", 2*time.Hour)

	client := &countingClient{text: `{"decision": "archive", "confidence": 0.8}`}
	svc := newService(t, mem, client, core.ServiceOptions{BatchLimit: 10, BodyClip: 500})

	report, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Propagated)
	// warm-up plus one call per message
	assert.Equal(t, int32(3), atomic.LoadInt32(&client.calls))
}

func TestProcessBatchNeverOverwritesDecided(t *testing.T) {
	mem := store.NewMemoryStore()
	fp := fingerprint.Compute("promo@shop.example", "Weekly deals")
	mem.Add(&core.Message{
		ID: 1, From: "promo@shop.example", Subject: "Weekly deals",
		Date: time.Now(), Fingerprint: fp,
		Record: core.ClassificationRecord{Decision: core.DecisionKeep, Reason: "pinned by user"},
	})
	seedMessage(mem, 2, "promo@shop.example", "Weekly deals", time.Hour)

	client := &countingClient{text: `{"decision": "delete", "confidence": 0.9}`}
	svc := newService(t, mem, client, core.ServiceOptions{BatchLimit: 10, BodyClip: 500, DedupEnabled: true})

	_, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)

	pinned, _ := mem.Get(1)
	assert.Equal(t, core.DecisionKeep, pinned.Record.Decision)
	assert.Equal(t, "pinned by user", pinned.Record.Reason)

	decided, _ := mem.Get(2)
	assert.Equal(t, core.DecisionDelete, decided.Record.Decision)
}

func TestProcessBatchFallbackWithoutOracle(t *testing.T) {
	mem := store.NewMemoryStore()
	seedMessage(mem, 1, "alice@example.com", "hello", time.Hour)

	svc := newService(t, mem, nil, core.ServiceOptions{BatchLimit: 10, BodyClip: 500, DedupEnabled: true})

	report, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	msg, _ := mem.Get(1)
	assert.Equal(t, core.DecisionArchive, msg.Record.Decision)
	assert.Equal(t, "fallback", msg.Record.Reason)
	assert.Equal(t, 0.5, msg.Record.Confidence)
}

func TestProcessBatchOracleFailureStillDecides(t *testing.T) {
	mem := store.NewMemoryStore()
	seedMessage(mem, 1, "alice@example.com", "hello", time.Hour)

	client := &countingClient{err: errors.New("connection refused")}
	svc := newService(t, mem, client, core.ServiceOptions{BatchLimit: 10, BodyClip: 500})

	report, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Warnings)

	msg, _ := mem.Get(1)
	assert.Equal(t, core.DecisionArchive, msg.Record.Decision)
	assert.Equal(t, "fallback", msg.Record.Reason)
}

func TestProcessBatchHonorsLimit(t *testing.T) {
	mem := store.NewMemoryStore()
	for i := int64(1); i <= 5; i++ {
		seedMessage(mem, i, "alice@example.com", "hello", time.Duration(i)*time.Hour)
	}

	svc := newService(t, mem, nil, core.ServiceOptions{BatchLimit: 2, BodyClip: 500})

	report, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.ToProcess)
	assert.Equal(t, 2, report.Processed)
}

func TestPreviewCounts(t *testing.T) {
	mem := store.NewMemoryStore()
	seedMessage(mem, 1, "a@example.com", "one", time.Hour)
	seedMessage(mem, 2, "b@example.com", "two", time.Hour)
	seedMessage(mem, 3, "c@example.com", "three", time.Hour)

	svc := newService(t, mem, nil, core.ServiceOptions{BatchLimit: 10, BodyClip: 500})
	_, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)

	counts, err := svc.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[core.DecisionArchive])
	assert.Zero(t, counts[core.DecisionDelete])
}

func TestReapplyOverridesRewritesMatches(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Add(&core.Message{
		ID: 1, From: "promo@newsletter.example.com", Subject: "Flash Sale!!",
		Date:   time.Now(),
		Record: core.ClassificationRecord{Decision: core.DecisionArchive, Reason: "fallback"},
	})
	mem.Add(&core.Message{
		ID: 2, From: "alice@example.com", Subject: "lunch",
		Date:   time.Now(),
		Record: core.ClassificationRecord{Decision: core.DecisionKeep, Reason: "personal"},
	})

	logger := zap.NewNop()
	engine, err := rules.NewOverrideEngine(rules.DefaultOverrideRules())
	require.NoError(t, err)
	heuristics, err := rules.NewHeuristicMatcher(nil, nil)
	require.NoError(t, err)
	svc := core.NewDeciderService(mem, nil, core.NewResolver(engine, 0, logger), heuristics,
		utils.NewTextProcessor(logger), nil, core.ServiceOptions{}, logger)

	changed, err := svc.ReapplyOverrides(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	overridden, _ := mem.Get(1)
	assert.Equal(t, core.DecisionDelete, overridden.Record.Decision)
	assert.Equal(t, "fallback | rule: generic newsletter sender", overridden.Record.Reason)

	untouched, _ := mem.Get(2)
	assert.Equal(t, core.DecisionKeep, untouched.Record.Decision)

	// second run is a no-op
	changed, err = svc.ReapplyOverrides(context.Background())
	require.NoError(t, err)
	assert.Zero(t, changed)
}

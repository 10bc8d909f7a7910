package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/rules"
)

func newResolver(t *testing.T, overrideRules []rules.OverrideRule, minConfDelete float64) *Resolver {
	t.Helper()
	engine, err := rules.NewOverrideEngine(overrideRules)
	require.NoError(t, err)
	return NewResolver(engine, minConfDelete, zap.NewNop())
}

func success(text string) CallOutcome {
	return CallOutcome{Status: CallSuccess, Text: text}
}

func TestResolveFallbackOnTransportFailure(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "alice@example.com", Subject: "lunch"}

	rec := r.Resolve(msg, []string{"Rendez-vous"}, CallOutcome{Status: CallTransportFailure, Err: errors.New("boom")})

	assert.Equal(t, DecisionArchive, rec.Decision)
	assert.Equal(t, 0.5, rec.Confidence)
	assert.Equal(t, "fallback", rec.Reason)
	assert.Equal(t, []string{"Rendez-vous"}, rec.Labels)
	assert.Empty(t, rec.Summary)
}

func TestResolveFallbackOnUnparseableResponse(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "alice@example.com", Subject: "lunch"}

	rec := r.Resolve(msg, nil, success("I cannot classify this."))

	assert.Equal(t, DecisionArchive, rec.Decision)
	assert.Equal(t, "fallback", rec.Reason)
}

func TestResolveFullOracleResponse(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "billing@host.example", Subject: "Invoice #42"}

	rec := r.Resolve(msg, []string{"Notifications"}, success(
		`{"decision": "keep", "confidence": 0.95, "reason": "invoice", "category": ["Factures"], "summary": "Monthly invoice."}`))

	assert.Equal(t, DecisionKeep, rec.Decision)
	assert.Equal(t, 0.95, rec.Confidence)
	assert.Equal(t, "invoice", rec.Reason)
	assert.Equal(t, []string{"Factures"}, rec.Labels)
	assert.Equal(t, "Monthly invoice.", rec.Summary)
}

func TestResolveCoercesInvalidDecision(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "x@example.com"}

	rec := r.Resolve(msg, nil, success(`{"decision": "purge", "confidence": 0.9}`))
	assert.Equal(t, DecisionArchive, rec.Decision)

	rec = r.Resolve(msg, nil, success(`{"confidence": 0.9}`))
	assert.Equal(t, DecisionArchive, rec.Decision)
}

func TestResolveMissingConfidenceKeepsDefault(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "x@example.com"}

	rec := r.Resolve(msg, nil, success(`{"decision": "keep"}`))
	assert.Equal(t, 0.5, rec.Confidence)
}

func TestResolveConfidenceGateDowngradesDelete(t *testing.T) {
	r := newResolver(t, nil, 0.6)
	msg := &Message{From: "x@example.com"}

	rec := r.Resolve(msg, nil, success(`{"decision": "delete", "confidence": 0.4, "reason": "promo"}`))
	assert.Equal(t, DecisionArchive, rec.Decision)
	assert.Equal(t, "promo | downgraded: conf<0.6", rec.Reason)

	rec = r.Resolve(msg, nil, success(`{"decision": "delete", "confidence": 0.6, "reason": "promo"}`))
	assert.Equal(t, DecisionDelete, rec.Decision)
	assert.Equal(t, "promo", rec.Reason)
}

func TestResolveGateDisabledByDefault(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "x@example.com"}

	rec := r.Resolve(msg, nil, success(`{"decision": "delete", "confidence": 0.0, "reason": "junk"}`))
	assert.Equal(t, DecisionDelete, rec.Decision)
	assert.Equal(t, "junk", rec.Reason)
}

func TestResolveCapsOracleLabels(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "x@example.com"}

	rec := r.Resolve(msg, nil, success(
		`{"decision": "keep", "category": ["A", "B", "C", "D", "E", "F", "G", "H"]}`))
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, rec.Labels)
}

func TestResolveOracleLabelsWinOverHeuristics(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "x@example.com"}

	rec := r.Resolve(msg, []string{"Notifications"}, success(`{"decision": "keep", "category": ["Factures"]}`))
	assert.Equal(t, []string{"Factures"}, rec.Labels)
}

func TestResolveOverrideAppendsReason(t *testing.T) {
	r := newResolver(t, rules.DefaultOverrideRules(), 0)
	msg := &Message{From: "promo@newsletter.example.com", Subject: "Flash Sale!!"}

	rec := r.Resolve(msg, []string{"Newsletter", "Promotions"}, CallOutcome{Status: CallTimeout})

	assert.Equal(t, DecisionDelete, rec.Decision)
	assert.Equal(t, "fallback | rule: generic newsletter sender", rec.Reason)
	assert.Equal(t, 0.5, rec.Confidence)
	assert.Equal(t, []string{"Newsletter", "Promotions"}, rec.Labels)
}

func TestResolveOverrideSameDecisionKeepsReason(t *testing.T) {
	r := newResolver(t, []rules.OverrideRule{
		{Sender: `@shop\.example`, Subject: `.*`, Decision: DecisionDelete, Reason: "rule: shop"},
	}, 0)
	msg := &Message{From: "promo@shop.example", Subject: "deals"}

	rec := r.Resolve(msg, nil, success(`{"decision": "delete", "confidence": 0.9, "reason": "junk"}`))
	assert.Equal(t, DecisionDelete, rec.Decision)
	assert.Equal(t, "junk", rec.Reason)
}

func TestResolveCategoryShortCircuitBypassesGate(t *testing.T) {
	// the gate runs before overrides, so a rule-forced delete stands even
	// at low confidence
	r := newResolver(t, rules.DefaultOverrideRules(), 0.9)
	msg := &Message{From: "updates@corp.example", Subject: "March recap"}

	rec := r.Resolve(msg, nil, success(
		`{"decision": "keep", "confidence": 0.3, "reason": "looks fine", "category": ["Newsletter"]}`))

	assert.Equal(t, DecisionDelete, rec.Decision)
	assert.Equal(t, "looks fine | "+rules.CategoryOverrideReason, rec.Reason)
}

func TestResolveClipsLongFields(t *testing.T) {
	r := newResolver(t, nil, 0)
	msg := &Message{From: "x@example.com"}

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	rec := r.Resolve(msg, nil, success(
		`{"decision": "keep", "reason": "`+string(long)+`", "summary": "`+string(long)+`"}`))

	assert.Len(t, rec.Reason, MaxReasonLen)
	assert.Len(t, rec.Summary, MaxSummaryLen)
}

func TestReapplyOverrideUsesStoredLabels(t *testing.T) {
	r := newResolver(t, rules.DefaultOverrideRules(), 0)
	msg := &Message{
		From:    "updates@corp.example",
		Subject: "March recap",
		Record: ClassificationRecord{
			Decision: DecisionArchive,
			Reason:   "fallback",
			Labels:   []string{"Promotions"},
		},
	}

	decision, reason, changed := r.ReapplyOverride(msg)
	require.True(t, changed)
	assert.Equal(t, DecisionDelete, decision)
	assert.Equal(t, "fallback | "+rules.CategoryOverrideReason, reason)

	// a second pass over the updated record is a no-op
	msg.Record.Decision = decision
	msg.Record.Reason = reason
	_, _, changed = r.ReapplyOverride(msg)
	assert.False(t, changed)
}

func TestReapplyOverrideFallsBackToSummary(t *testing.T) {
	r := newResolver(t, rules.DefaultOverrideRules(), 0)
	msg := &Message{
		From:    "updates@corp.example",
		Subject: "March recap",
		Record: ClassificationRecord{
			Decision: DecisionArchive,
			Reason:   "fallback",
			Summary:  "The monthly newsletter with company news.",
		},
	}

	decision, _, changed := r.ReapplyOverride(msg)
	require.True(t, changed)
	assert.Equal(t, DecisionDelete, decision)
}

func TestReapplyOverrideNoMatch(t *testing.T) {
	r := newResolver(t, rules.DefaultOverrideRules(), 0)
	msg := &Message{
		From:    "alerts@bank.example.com",
		Subject: "Unusual sign-in attempt",
		Record:  ClassificationRecord{Decision: DecisionKeep, Reason: "security alert"},
	}

	decision, reason, changed := r.ReapplyOverride(msg)
	assert.False(t, changed)
	assert.Equal(t, DecisionKeep, decision)
	assert.Equal(t, "security alert", reason)
}

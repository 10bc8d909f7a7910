package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/rules"
	"github.com/pelissiernicolas/mail-ai-local/internal/salvage"
)

// Resolver combines the oracle outcome (or its absence) with the
// confidence-gated delete downgrade and the override rule engine to
// produce the final classification record for one message.
type Resolver struct {
	overrides     *rules.OverrideEngine
	minConfDelete float64
	logger        *zap.Logger
}

// NewResolver creates a new resolver. minConfDelete of zero disables the
// confidence gate.
func NewResolver(overrides *rules.OverrideEngine, minConfDelete float64, logger *zap.Logger) *Resolver {
	return &Resolver{
		overrides:     overrides,
		minConfDelete: minConfDelete,
		logger:        logger,
	}
}

// Resolve produces the final record for a message given the heuristic
// label result and the oracle call outcome. It is a pure function of its
// inputs and never fails.
func (r *Resolver) Resolve(msg *Message, heuristicLabels []string, call CallOutcome) ClassificationRecord {
	decision := DecisionArchive
	confidence := 0.5
	reason := "fallback"
	categoryText := ""
	summary := ""
	var oracleLabels []string

	if call.Status == CallSuccess {
		outcome := salvage.Parse(call.Text)
		if outcome.Status != salvage.NothingRecovered {
			fields := outcome.Fields

			decision = Decision(fields.Decision)
			if decision == "" {
				decision = DecisionArchive
			}
			// out-of-enum values from the oracle are coerced, not trusted
			if !decision.Valid() {
				r.logger.Debug("Coercing invalid oracle decision",
					zap.Int64("id", msg.ID),
					zap.String("decision", fields.Decision))
				decision = DecisionArchive
			}
			if fields.Confidence != nil {
				confidence = *fields.Confidence
			}
			reason = clip(fields.Reason, MaxReasonLen)
			oracleLabels = cleanLabels(fields.Categories, MaxLabels)
			categoryText = clip(strings.Join(oracleLabels, ", "), MaxCategoryLen)
			summary = clip(fields.Summary, MaxSummaryLen)
		}
	}

	// low-confidence deletions are never trusted
	if decision == DecisionDelete && confidence < r.minConfDelete {
		decision = DecisionArchive
		reason = joinReason(reason, fmt.Sprintf("downgraded: conf<%g", r.minConfDelete))
	}

	labels := oracleLabels
	if len(labels) == 0 {
		labels = cleanLabels(heuristicLabels, MaxLabels)
	}

	// user overrides have the final word
	before := decision
	decision, overrideReason := r.overrides.Apply(msg.From, msg.Subject, decision, categoryText)
	if overrideReason != "" && decision != before {
		reason = joinReason(reason, overrideReason)
	}

	return ClassificationRecord{
		Decision:   decision,
		Reason:     clip(reason, MaxReasonLen),
		Confidence: confidence,
		Labels:     labels,
		Summary:    summary,
	}
}

// ReapplyOverride re-runs the override engine against an already-decided
// message. The category text comes from the stored labels, or failing
// that the head of the stored summary. Returns the possibly-updated
// decision and reason, and whether anything changed; re-application is
// idempotent when no rule newly matches.
func (r *Resolver) ReapplyOverride(msg *Message) (Decision, string, bool) {
	categoryText := strings.Join(msg.Record.Labels, ", ")
	if categoryText == "" {
		categoryText = clip(msg.Record.Summary, 200)
	}

	decision, overrideReason := r.overrides.Apply(msg.From, msg.Subject, msg.Record.Decision, categoryText)
	if decision == msg.Record.Decision {
		return msg.Record.Decision, msg.Record.Reason, false
	}
	return decision, joinReason(msg.Record.Reason, overrideReason), true
}

// cleanLabels trims entries, drops empties, deduplicates preserving first
// occurrence and caps the result.
func cleanLabels(labels []string, limit int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func joinReason(prev, extra string) string {
	if extra == "" {
		return prev
	}
	return strings.Trim(strings.TrimSpace(prev)+" | "+extra, " |")
}

// clip truncates to at most max bytes on a valid UTF-8 boundary.
func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	clipped := s[:max]
	for !utf8.ValidString(clipped) && len(clipped) > 0 {
		clipped = clipped[:len(clipped)-1]
	}
	return clipped
}

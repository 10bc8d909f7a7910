package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/fingerprint"
	"github.com/pelissiernicolas/mail-ai-local/internal/rules"
	"github.com/pelissiernicolas/mail-ai-local/internal/utils"
)

// ServiceOptions carries the tunables of one decider run.
type ServiceOptions struct {
	BatchLimit   int
	BodyClip     int
	CommitEvery  int
	DedupEnabled bool
}

// DeciderService drives classification over the record store: it fetches
// undecided messages, decides one representative per duplicate group and
// propagates the result to the rest of the group.
type DeciderService struct {
	store      MessageStore
	caller     *OracleCaller
	resolver   *Resolver
	heuristics *rules.HeuristicMatcher
	textProc   *utils.TextProcessor
	decisions  DecisionLog
	opts       ServiceOptions
	logger     *zap.Logger
}

// NewDeciderService creates a new decider service. caller may be nil, in
// which case messages are decided from heuristics and overrides alone.
// decisions may be nil to disable the JSONL log.
func NewDeciderService(
	store MessageStore,
	caller *OracleCaller,
	resolver *Resolver,
	heuristics *rules.HeuristicMatcher,
	textProc *utils.TextProcessor,
	decisions DecisionLog,
	opts ServiceOptions,
	logger *zap.Logger,
) *DeciderService {
	if opts.CommitEvery <= 0 {
		opts.CommitEvery = 25
	}
	return &DeciderService{
		store:      store,
		caller:     caller,
		resolver:   resolver,
		heuristics: heuristics,
		textProc:   textProc,
		decisions:  decisions,
		opts:       opts,
		logger:     logger,
	}
}

// ProcessBatch decides up to BatchLimit undecided messages. Messages are
// processed sequentially; a failure while handling one message is logged
// as a warning and never aborts the batch. Commit failures are fatal.
func (s *DeciderService) ProcessBatch(ctx context.Context) (*BatchReport, error) {
	report := &BatchReport{RunID: uuid.NewString()}

	msgs, err := s.store.ListUndecided(ctx, s.opts.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list undecided messages: %w", err)
	}
	report.ToProcess = len(msgs)
	s.logger.Info("Starting decision batch",
		zap.String("run_id", report.RunID),
		zap.Int("to_process", report.ToProcess),
		zap.Bool("dedup", s.opts.DedupEnabled))

	if s.caller != nil && len(msgs) > 0 {
		if err := s.caller.WarmUp(ctx); err != nil {
			s.logger.Warn("Oracle warm-up failed", zap.Error(err))
		}
	}

	// Fingerprint the whole batch up front so that propagation from a
	// group's representative already sees every sibling's fingerprint.
	for _, msg := range msgs {
		if msg.Fingerprint != "" {
			continue
		}
		msg.Fingerprint = fingerprint.Compute(msg.From, msg.Subject)
		if err := s.store.SetFingerprint(ctx, msg.ID, msg.Fingerprint); err != nil {
			s.logger.Warn("Failed to store fingerprint",
				zap.Int64("id", msg.ID), zap.Error(err))
			report.Warnings++
		}
	}

	decidedGroups := make(map[string]struct{})
	sinceCommit := 0

	for _, msg := range msgs {
		if s.opts.DedupEnabled {
			if _, done := decidedGroups[msg.Fingerprint]; done {
				// already covered by an earlier propagation in this run
				continue
			}
		}

		if err := s.processOne(ctx, msg, report, decidedGroups); err != nil {
			s.logger.Warn("Failed to process message",
				zap.Int64("id", msg.ID),
				zap.String("from", msg.From),
				zap.Error(err))
			report.Warnings++
			continue
		}
		report.Processed++
		sinceCommit++

		if sinceCommit >= s.opts.CommitEvery {
			if err := s.store.Flush(ctx); err != nil {
				return report, fmt.Errorf("failed to commit batch: %w", err)
			}
			sinceCommit = 0
		}
	}

	if err := s.store.Flush(ctx); err != nil {
		return report, fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logger.Info("Decision batch finished",
		zap.String("run_id", report.RunID),
		zap.Int("processed", report.Processed),
		zap.Int("propagated", report.Propagated),
		zap.Int("warnings", report.Warnings))
	return report, nil
}

// processOne decides a single representative message and fans the result
// out to its duplicate group.
func (s *DeciderService) processOne(ctx context.Context, msg *Message, report *BatchReport, decidedGroups map[string]struct{}) error {
	heuristicLabels := s.heuristics.Match(msg.From, msg.Subject)

	outcome := CallOutcome{Status: CallTransportFailure}
	if s.caller != nil {
		excerpt := s.textProc.ProcessExcerpt(msg.Body, s.opts.BodyClip)
		prompt := RenderPrompt(msg.From, msg.Subject, excerpt)
		outcome = s.caller.Call(ctx, prompt)
	}

	rec := s.resolver.Resolve(msg, heuristicLabels, outcome)

	if err := s.store.SaveClassification(ctx, msg.ID, rec); err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	msg.Record = rec

	s.logger.Debug("Message decided",
		zap.Int64("id", msg.ID),
		zap.String("from", msg.From),
		zap.String("decision", string(rec.Decision)),
		zap.Float64("confidence", rec.Confidence),
		zap.Strings("labels", rec.Labels))

	if s.decisions != nil {
		if err := s.decisions.Log(report.RunID, msg, rec); err != nil {
			s.logger.Warn("Failed to write decision log entry",
				zap.Int64("id", msg.ID), zap.Error(err))
		}
	}

	if s.opts.DedupEnabled && msg.Fingerprint != "" {
		n, err := s.store.PropagateClassification(ctx, msg.Fingerprint, msg.ID, rec)
		if err != nil {
			return fmt.Errorf("failed to propagate classification: %w", err)
		}
		report.Propagated += int(n)
		decidedGroups[msg.Fingerprint] = struct{}{}
	}
	return nil
}

// ReapplyOverrides re-runs the override engine over every decided message
// and rewrites only the rows whose decision changes. Running it twice with
// the same ruleset is a no-op the second time.
func (s *DeciderService) ReapplyOverrides(ctx context.Context) (int, error) {
	msgs, err := s.store.ListDecided(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list decided messages: %w", err)
	}

	changed := 0
	for _, msg := range msgs {
		decision, reason, updated := s.resolver.ReapplyOverride(msg)
		if !updated {
			continue
		}
		if err := s.store.UpdateDecision(ctx, msg.ID, decision, reason); err != nil {
			s.logger.Warn("Failed to update overridden decision",
				zap.Int64("id", msg.ID), zap.Error(err))
			continue
		}
		changed++
	}

	if err := s.store.Flush(ctx); err != nil {
		return changed, fmt.Errorf("failed to commit overrides: %w", err)
	}
	s.logger.Info("Overrides reapplied", zap.Int("changed", changed))
	return changed, nil
}

// Preview returns the number of decided messages per decision value.
func (s *DeciderService) Preview(ctx context.Context) (map[Decision]int64, error) {
	return s.store.DecisionCounts(ctx)
}

package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/adapters/jsonl"
	"github.com/pelissiernicolas/mail-ai-local/internal/config"
	"github.com/pelissiernicolas/mail-ai-local/internal/core"
	"github.com/pelissiernicolas/mail-ai-local/internal/factory"
	"github.com/pelissiernicolas/mail-ai-local/internal/logging"
	"github.com/pelissiernicolas/mail-ai-local/internal/rules"
	"github.com/pelissiernicolas/mail-ai-local/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewOracleFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}

	// Register message store
	if err := container.Provide(func(f *factory.StoreFactory) (core.MessageStore, error) {
		return f.CreateMessageStore()
	}); err != nil {
		return nil, err
	}

	// Register oracle caller. A disabled oracle yields a nil caller and the
	// service decides from heuristics and overrides alone.
	if err := container.Provide(func(cfg *config.Config, f *factory.OracleFactory, logger *zap.Logger) (*core.OracleCaller, error) {
		oracleCfg, err := cfg.GetOracle()
		if err != nil {
			return nil, err
		}
		if !oracleCfg.Enabled {
			logger.Info("Oracle disabled, deciding from rules only")
			return nil, nil
		}
		client, err := f.CreateOracleClient()
		if err != nil {
			return nil, err
		}
		policy := core.RetryPolicy{
			MaxAttempts:  oracleCfg.MaxAttempts,
			InitialDelay: oracleCfg.InitialDelay,
		}
		return core.NewOracleCaller(client, policy, oracleCfg.Timeout, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register rule engines
	if err := container.Provide(func(cfg *config.Config) (*rules.OverrideEngine, error) {
		list, err := cfg.GetOverrideRules()
		if err != nil {
			return nil, err
		}
		return rules.NewOverrideEngine(list)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) (*rules.HeuristicMatcher, error) {
		senders, err := cfg.GetSenderHeuristics()
		if err != nil {
			return nil, err
		}
		subjects, err := cfg.GetSubjectHeuristics()
		if err != nil {
			return nil, err
		}
		return rules.NewHeuristicMatcher(senders, subjects)
	}); err != nil {
		return nil, err
	}

	// Register resolver
	if err := container.Provide(func(cfg *config.Config, overrides *rules.OverrideEngine, logger *zap.Logger) *core.Resolver {
		return core.NewResolver(overrides, cfg.GetDecider().MinConfDelete, logger)
	}); err != nil {
		return nil, err
	}

	// Register decision log
	if err := container.Provide(func(cfg *config.Config) (core.DecisionLog, error) {
		path := cfg.GetString("log.jsonl_path")
		if path == "" {
			return nil, nil
		}
		return jsonl.New(path)
	}); err != nil {
		return nil, err
	}

	// Register service options
	if err := container.Provide(func(cfg *config.Config) core.ServiceOptions {
		deciderCfg := cfg.GetDecider()
		return core.ServiceOptions{
			BatchLimit:   deciderCfg.BatchLimit,
			BodyClip:     deciderCfg.BodyClip,
			CommitEvery:  deciderCfg.CommitEvery,
			DedupEnabled: deciderCfg.DedupEnabled,
		}
	}); err != nil {
		return nil, err
	}

	// Register decider service
	if err := container.Provide(core.NewDeciderService); err != nil {
		return nil, err
	}

	return container, nil
}

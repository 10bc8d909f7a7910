package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/adapters/bedrock"
	"github.com/pelissiernicolas/mail-ai-local/internal/adapters/gemini"
	"github.com/pelissiernicolas/mail-ai-local/internal/adapters/ollama"
	"github.com/pelissiernicolas/mail-ai-local/internal/adapters/openai"
	"github.com/pelissiernicolas/mail-ai-local/internal/config"
	"github.com/pelissiernicolas/mail-ai-local/internal/core"
)

// OracleFactory creates oracle clients based on configuration
type OracleFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewOracleFactory creates a new oracle factory
func NewOracleFactory(cfg *config.Config, logger *zap.Logger) *OracleFactory {
	return &OracleFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateOracleClient creates an oracle client for the configured provider
func (f *OracleFactory) CreateOracleClient() (core.OracleClient, error) {
	provider := f.cfg.GetString("oracle.provider")

	switch provider {
	case "ollama":
		ollamaCfg := f.cfg.GetOllama()
		return ollama.NewClient(
			ollamaCfg.Endpoint,
			ollamaCfg.Model,
			ollamaCfg.NumPredict,
			ollamaCfg.NumCtx,
			ollamaCfg.Temperature,
			f.logger,
		), nil
	case "openai":
		openaiCfg := f.cfg.GetOpenAI()
		return openai.NewClient(
			openaiCfg.APIKey,
			openaiCfg.ModelName,
			openaiCfg.MaxTokens,
			openaiCfg.Temperature,
			openaiCfg.TopP,
			f.logger,
		), nil
	case "gemini":
		geminiCfg := f.cfg.GetGemini()
		return gemini.NewClient(
			geminiCfg.APIKey,
			geminiCfg.ModelName,
			geminiCfg.MaxTokens,
			geminiCfg.Temperature,
			geminiCfg.TopP,
			f.logger,
		)
	case "bedrock":
		bedrockCfg := f.cfg.GetBedrock()
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(bedrockCfg.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		return bedrock.NewClient(
			bedrockruntime.NewFromConfig(awsCfg),
			bedrockCfg.ModelID,
			bedrockCfg.MaxTokens,
			bedrockCfg.Temperature,
			bedrockCfg.TopP,
			f.logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", provider)
	}
}

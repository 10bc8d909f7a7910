package config

import (
	"fmt"
	"time"

	"github.com/pelissiernicolas/mail-ai-local/internal/rules"
)

// OracleConfig represents the provider-independent oracle call settings
type OracleConfig struct {
	Provider     string
	Enabled      bool
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
}

// OllamaConfig represents the configuration for a local Ollama endpoint
type OllamaConfig struct {
	Endpoint    string
	Model       string
	NumPredict  int
	NumCtx      int
	Temperature float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// DeciderConfig represents the batch decision settings
type DeciderConfig struct {
	BatchLimit    int
	BodyClip      int
	CommitEvery   int
	DedupEnabled  bool
	MinConfDelete float64
}

// StoreConfig represents the record store settings
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// GetOracle returns the oracle call configuration
func (c *Config) GetOracle() (OracleConfig, error) {
	timeout, err := c.GetDuration("oracle.timeout")
	if err != nil {
		return OracleConfig{}, fmt.Errorf("invalid oracle timeout: %w", err)
	}
	delay, err := c.GetDuration("oracle.initial_delay")
	if err != nil {
		return OracleConfig{}, fmt.Errorf("invalid oracle initial delay: %w", err)
	}
	return OracleConfig{
		Provider:     c.GetString("oracle.provider"),
		Enabled:      c.GetBool("oracle.enabled"),
		Timeout:      timeout,
		MaxAttempts:  c.GetInt("oracle.max_attempts"),
		InitialDelay: delay,
	}, nil
}

// GetOllama returns the Ollama configuration
func (c *Config) GetOllama() OllamaConfig {
	return OllamaConfig{
		Endpoint:    c.GetString("ollama.endpoint"),
		Model:       c.GetString("ollama.model"),
		NumPredict:  c.GetInt("ollama.num_predict"),
		NumCtx:      c.GetInt("ollama.num_ctx"),
		Temperature: float32(c.GetFloat64("ollama.temperature")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetDecider returns the decider configuration
func (c *Config) GetDecider() DeciderConfig {
	return DeciderConfig{
		BatchLimit:    c.GetInt("decider.batch_limit"),
		BodyClip:      c.GetInt("decider.body_clip"),
		CommitEvery:   c.GetInt("decider.commit_every"),
		DedupEnabled:  c.GetBool("decider.dedup_enabled"),
		MinConfDelete: c.GetFloat64("decider.min_conf_delete"),
	}
}

// GetStore returns the record store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetOverrideRules returns the configured override rule list, or the
// built-in defaults when none is configured.
func (c *Config) GetOverrideRules() ([]rules.OverrideRule, error) {
	if !c.v.IsSet("rules.overrides") {
		return rules.DefaultOverrideRules(), nil
	}
	var list []rules.OverrideRule
	if err := c.v.UnmarshalKey("rules.overrides", &list); err != nil {
		return nil, fmt.Errorf("failed to parse override rules: %w", err)
	}
	return list, nil
}

// GetSenderHeuristics returns the configured sender heuristic table, or
// the built-in defaults when none is configured.
func (c *Config) GetSenderHeuristics() ([]rules.HeuristicRule, error) {
	if !c.v.IsSet("rules.sender_heuristics") {
		return rules.DefaultSenderHeuristics(), nil
	}
	var list []rules.HeuristicRule
	if err := c.v.UnmarshalKey("rules.sender_heuristics", &list); err != nil {
		return nil, fmt.Errorf("failed to parse sender heuristics: %w", err)
	}
	return list, nil
}

// GetSubjectHeuristics returns the configured subject heuristic table, or
// the built-in defaults when none is configured.
func (c *Config) GetSubjectHeuristics() ([]rules.HeuristicRule, error) {
	if !c.v.IsSet("rules.subject_heuristics") {
		return rules.DefaultSubjectHeuristics(), nil
	}
	var list []rules.HeuristicRule
	if err := c.v.UnmarshalKey("rules.subject_heuristics", &list); err != nil {
		return nil, fmt.Errorf("failed to parse subject heuristics: %w", err)
	}
	return list, nil
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pelissiernicolas/mail-ai-local/internal/config"
	"github.com/pelissiernicolas/mail-ai-local/internal/core"
	"github.com/pelissiernicolas/mail-ai-local/internal/factory"
	"github.com/pelissiernicolas/mail-ai-local/internal/fingerprint"
	"github.com/pelissiernicolas/mail-ai-local/internal/logging"
	"github.com/pelissiernicolas/mail-ai-local/internal/rules"
	"github.com/pelissiernicolas/mail-ai-local/internal/utils"
)

var (
	// Oracle provider flags
	provider    = flag.String("provider", "ollama", "Oracle provider (ollama, openai, gemini, bedrock)")
	maxTokens   = flag.Int("max-tokens", 300, "Maximum tokens for the oracle response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for generation")
	timeout     = flag.Duration("timeout", 45*time.Second, "Per-call oracle timeout")
	noOracle    = flag.Bool("no-oracle", false, "Skip the oracle and decide from rules alone")

	// Ollama flags
	ollamaEndpoint = flag.String("ollama-endpoint", "http://localhost:11434", "Ollama endpoint URL")
	ollamaModel    = flag.String("ollama-model", "mistral", "Ollama model name")
	numPredict     = flag.Int("num-predict", 160, "Ollama num_predict option")
	numCtx         = flag.Int("num-ctx", 2048, "Ollama num_ctx option")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Decision flags
	minConfDelete = flag.Float64("min-conf-delete", 0.0, "Minimum confidence to keep a delete decision")
	bodyClip      = flag.Int("body-clip", 1500, "Maximum email body size to send to the oracle")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	// Build the rule engines
	overrideRules, err := cfg.GetOverrideRules()
	if err != nil {
		logger.Fatal("Failed to load override rules", zap.Error(err))
	}
	overrides, err := rules.NewOverrideEngine(overrideRules)
	if err != nil {
		logger.Fatal("Failed to compile override rules", zap.Error(err))
	}
	senderRules, err := cfg.GetSenderHeuristics()
	if err != nil {
		logger.Fatal("Failed to load sender heuristics", zap.Error(err))
	}
	subjectRules, err := cfg.GetSubjectHeuristics()
	if err != nil {
		logger.Fatal("Failed to load subject heuristics", zap.Error(err))
	}
	heuristics, err := rules.NewHeuristicMatcher(senderRules, subjectRules)
	if err != nil {
		logger.Fatal("Failed to compile heuristic rules", zap.Error(err))
	}

	resolver := core.NewResolver(overrides, cfg.GetFloat64("decider.min_conf_delete"), logger)
	textProcessor := utils.NewTextProcessor(logger)

	// Initialize oracle caller unless disabled
	var caller *core.OracleCaller
	if !*noOracle && cfg.GetBool("oracle.enabled") {
		oracleCfg, err := cfg.GetOracle()
		if err != nil {
			logger.Fatal("Invalid oracle configuration", zap.Error(err))
		}
		client, err := factory.NewOracleFactory(cfg, logger).CreateOracleClient()
		if err != nil {
			logger.Fatal("Failed to create oracle client", zap.Error(err))
		}
		policy := core.RetryPolicy{
			MaxAttempts:  oracleCfg.MaxAttempts,
			InitialDelay: oracleCfg.InitialDelay,
		}
		caller = core.NewOracleCaller(client, policy, oracleCfg.Timeout, logger)
		defer func() {
			if err := caller.Close(); err != nil {
				logger.Error("Failed to close oracle client", zap.Error(err))
			}
		}()
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	parsed, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := parsed.Header.Get("From")
	subject := parsed.Header.Get("Subject")
	bodyBytes, err := io.ReadAll(parsed.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}

	msg := &core.Message{
		From:        from,
		Subject:     subject,
		Body:        string(bodyBytes),
		Fingerprint: fingerprint.Compute(from, subject),
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(msg.Body))
	fmt.Printf("Fingerprint: %s\n", msg.Fingerprint)
	fmt.Printf("\n=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("oracle.provider"))

	startTime := time.Now()

	heuristicLabels := heuristics.Match(from, subject)
	outcome := core.CallOutcome{Status: core.CallTransportFailure}
	if caller != nil {
		excerpt := textProcessor.ProcessExcerpt(msg.Body, cfg.GetInt("decider.body_clip"))
		outcome = caller.Call(context.Background(), core.RenderPrompt(from, subject, excerpt))
	}
	rec := resolver.Resolve(msg, heuristicLabels, outcome)
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Decision: %s\n", rec.Decision)
	fmt.Printf("Confidence: %.2f\n", rec.Confidence)
	fmt.Printf("Reason: %s\n", rec.Reason)
	fmt.Printf("Labels: %s\n", strings.Join(rec.Labels, ", "))
	if rec.Summary != "" {
		fmt.Printf("Summary: %s\n", rec.Summary)
	}
	fmt.Printf("Processing time: %v\n", duration)
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("oracle.provider", *provider)
	v.Set("oracle.enabled", !*noOracle)
	v.Set("oracle.timeout", timeout.String())

	switch *provider {
	case "ollama":
		v.Set("ollama.endpoint", *ollamaEndpoint)
		v.Set("ollama.model", *ollamaModel)
		v.Set("ollama.num_predict", *numPredict)
		v.Set("ollama.num_ctx", *numCtx)
		v.Set("ollama.temperature", *temperature)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
	}

	v.Set("decider.min_conf_delete", *minConfDelete)
	v.Set("decider.body_clip", *bodyClip)

	return config.NewFromViper(v)
}

package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds the oracle call retries. Delay doubles after each
// failed attempt.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryPolicy returns the standard policy of two attempts with a
// three second initial backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, InitialDelay: 3 * time.Second}
}

// OracleCaller wraps an OracleClient with the retry policy and per-call
// timeout, turning transport errors into explicit call outcomes. One call
// is in flight at a time; the caller is used sequentially.
type OracleCaller struct {
	client  OracleClient
	policy  RetryPolicy
	timeout time.Duration
	logger  *zap.Logger
	sleep   func(time.Duration)
}

// NewOracleCaller creates a new caller around the given client.
func NewOracleCaller(client OracleClient, policy RetryPolicy, timeout time.Duration, logger *zap.Logger) *OracleCaller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &OracleCaller{
		client:  client,
		policy:  policy,
		timeout: timeout,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Call sends the prompt, retrying on failure per the policy. It never
// returns an error: exhausted retries yield a TransportFailure or Timeout
// outcome which the resolver maps to the fallback decision.
func (c *OracleCaller) Call(ctx context.Context, prompt string) CallOutcome {
	delay := c.policy.InitialDelay
	var lastErr error
	timedOut := false

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(delay)
			delay *= 2
		}

		callCtx := ctx
		cancel := func() {}
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		text, err := c.client.Generate(callCtx, prompt)
		cancel()

		if err == nil {
			return CallOutcome{Status: CallSuccess, Text: text}
		}
		lastErr = err
		timedOut = errors.Is(err, context.DeadlineExceeded)
		c.logger.Warn("Oracle call failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Error(err))
	}

	status := CallTransportFailure
	if timedOut {
		status = CallTimeout
	}
	return CallOutcome{Status: status, Err: lastErr}
}

// Close releases the underlying client when it holds a connection.
func (c *OracleCaller) Close() error {
	if closer, ok := c.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// WarmUp issues a minimal request so the model is loaded before the batch.
func (c *OracleCaller) WarmUp(ctx context.Context) error {
	callCtx := ctx
	cancel := func() {}
	if c.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	defer cancel()

	_, err := c.client.Generate(callCtx, WarmUpPrompt)
	return err
}

package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Chain tries providers in order until one succeeds. Use it to fall
// back from a cloned-voice provider to a stock voice when the upstream
// is degraded.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrAllProvidersFailed
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

// Synthesize tries each provider in order.
func (c *Chain) Synthesize(ctx context.Context, text, voiceID string) (*AudioResult, error) {
	var errs []string
	for i, p := range c.providers {
		result, err := p.Synthesize(ctx, text, voiceID)
		if err == nil {
			return result, nil
		}
		c.logger.Warn("provider failed, trying next",
			"provider", i,
			"error", err,
		)
		errs = append(errs, err.Error())

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &ChainError{Errors: errs}
}

// Health succeeds if any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []string
	for _, p := range c.providers {
		if err := p.Health(ctx); err == nil {
			return nil
		} else {
			errs = append(errs, err.Error())
		}
	}
	return &ChainError{Errors: errs}
}

// Close closes all providers, returning the first error.
func (c *Chain) Close() error {
	var first error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Providers returns the chain's providers in order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// ChainError aggregates the per-provider failures.
type ChainError struct {
	Errors []string
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAllProvidersFailed, strings.Join(e.Errors, "; "))
}

// Unwrap returns the sentinel so errors.Is works.
func (e *ChainError) Unwrap() error {
	return ErrAllProvidersFailed
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)

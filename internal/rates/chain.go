package rates

import (
	"context"
	"errors"
	"fmt"

	"adnews/internal/fetch"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	KindNetwork Kind = iota
	KindStatus
	KindMalformed
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ProviderError is one failed tier of a chain.
type ProviderError struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrExhausted is returned when every tier of a chain failed.
var ErrExhausted = errors.New("all providers failed")

func classify(provider string, err error) *ProviderError {
	var (
		statusErr *fetch.StatusError
		decodeErr *fetch.DecodeError
	)

	kind := KindNetwork

	switch {
	case errors.As(err, &statusErr):
		kind = KindStatus
	case errors.As(err, &decodeErr), errors.Is(err, ErrMalformed):
		kind = KindMalformed
	case errors.Is(err, errNotConfigured):
		kind = KindConfig
	}

	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// Resolution is the outcome of the first tier that answered for every symbol.
type Resolution struct {
	Provider string
	Rates    map[string]decimal.Decimal
	Failures []*ProviderError
}

type Chain struct {
	symbols   []string
	providers []Provider
}

func NewChain(symbols []string, providers ...Provider) *Chain {
	return &Chain{symbols: symbols, providers: providers}
}

func (c *Chain) Symbols() []string {
	return c.symbols
}

// Resolve tries providers in order and stops at the first success.
func (c *Chain) Resolve(ctx context.Context) (Resolution, error) {
	var res Resolution

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rates, err := p.Rates(ctx, c.symbols)
		if err != nil {
			res.Failures = append(res.Failures, classify(p.Name(), err))
			continue
		}

		res.Provider = p.Name()
		res.Rates = rates

		return res, nil
	}

	return res, ErrExhausted
}

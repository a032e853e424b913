package engine

import (
	"context"
	"strings"

	"github.com/databridge-io/databridge/pkg/adapter"
)

// SecurityValidator screens statements before they reach the resilience
// funnel. A rejection surfaces as a validation error and never consumes a
// connection or feeds the circuit breaker.
type SecurityValidator interface {
	ValidateStatement(ctx context.Context, engineID, text string) error
}

// AllowAllValidator admits every non-empty statement.
type AllowAllValidator struct{}

func (AllowAllValidator) ValidateStatement(ctx context.Context, engineID, text string) error {
	if strings.TrimSpace(text) == "" {
		return adapter.NewValidationError("statement", "empty statement")
	}
	return nil
}

// DenyListValidator rejects statements containing any of its denied
// substrings, compared case-insensitively.
type DenyListValidator struct {
	Denied []string
}

func (v DenyListValidator) ValidateStatement(ctx context.Context, engineID, text string) error {
	if strings.TrimSpace(text) == "" {
		return adapter.NewValidationError("statement", "empty statement")
	}
	lowered := strings.ToLower(text)
	for _, denied := range v.Denied {
		if denied != "" && strings.Contains(lowered, strings.ToLower(denied)) {
			return adapter.NewValidationError("statement", "statement matches denied pattern "+denied)
		}
	}
	return nil
}

package orchestrator

import (
	"context"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
)

// Gate is a deterministic check every artifact must pass before it is
// packaged. Any violation rejects the artifact; gates never fix content.
type Gate interface {
	Name() string
	Check(ctx context.Context, a content.Artifact) []guardrails.Violation
}

// GuardrailGate applies the current style guide.
type GuardrailGate struct {
	validator *guardrails.Validator
}

// NewGuardrailGate creates a gate over validator.
func NewGuardrailGate(validator *guardrails.Validator) *GuardrailGate {
	return &GuardrailGate{validator: validator}
}

// Name returns the gate identifier.
func (g *GuardrailGate) Name() string { return "style-guide" }

// Check runs every style guide rule.
func (g *GuardrailGate) Check(_ context.Context, a content.Artifact) []guardrails.Violation {
	return g.validator.Validate(a)
}

// runGates collects the violations of every gate.
func runGates(ctx context.Context, gates []Gate, a content.Artifact) []guardrails.Violation {
	var out []guardrails.Violation
	for _, g := range gates {
		out = append(out, g.Check(ctx, a)...)
	}
	return out
}

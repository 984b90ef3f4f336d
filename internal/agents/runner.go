package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
	"github.com/fyrsmithlabs/contentfactory/internal/logging"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
)

var (
	// ErrStructuralOutput is returned when an answer still fails its
	// contract after the corrective retry.
	ErrStructuralOutput = errors.New("agent output failed its contract")

	// ErrTimeout is returned when an agent call exceeds its deadline.
	ErrTimeout = errors.New("agent call timed out")
)

// Runner executes agents. It is safe for concurrent use.
type Runner struct {
	registry  *Registry
	completer Completer
	retriever *retrieval.Service
	validator *guardrails.Validator
	images    ImageGenerator
	shortener Shortener
	timeout   time.Duration
	baseURL   string
	logger    *logging.Logger
	tracer    trace.Tracer
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Registry  *Registry
	Completer Completer

	// Retriever grounds prompts. Nil disables retrieval.
	Retriever *retrieval.Service

	// Validator supplies the format rules of each contract. Nil checks
	// structure only.
	Validator *guardrails.Validator

	Images    ImageGenerator
	Shortener Shortener

	// QuickstartBaseURL is the API base the blog's code samples call.
	// Default: https://api.yourbrand.ai
	QuickstartBaseURL string

	// Timeout bounds one agent call including its corrective retry.
	// Default: 90s
	Timeout time.Duration

	Logger *logging.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Registry == nil || cfg.Completer == nil {
		return nil, errors.New("agents: registry and completer are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Shortener == nil {
		cfg.Shortener = PassthroughShortener{}
	}
	if cfg.Images == nil {
		cfg.Images = NewPlaceholderImageGenerator("")
	}
	if cfg.QuickstartBaseURL == "" {
		cfg.QuickstartBaseURL = "https://api.yourbrand.ai"
	}
	return &Runner{
		registry:  cfg.Registry,
		completer: cfg.Completer,
		retriever: cfg.Retriever,
		validator: cfg.Validator,
		images:    cfg.Images,
		shortener: cfg.Shortener,
		timeout:   cfg.Timeout,
		baseURL:   cfg.QuickstartBaseURL,
		logger:    cfg.Logger.Named("agents"),
		tracer:    otel.Tracer("contentfactory.agents"),
	}, nil
}

// Registry returns the agent registry.
func (r *Runner) Registry() *Registry { return r.registry }

// call describes one agent invocation.
type call[T any] struct {
	agent Name

	// input is marshalled into the prompt.
	input any

	// query is the text used for grounding. Empty skips retrieval.
	query string

	// check validates the parsed answer against the contract.
	check func(*T) error
}

// invoke runs one agent: ground, complete, parse, check, and retry once
// with a corrective instruction if the answer breaks the contract.
func invoke[T any](ctx context.Context, r *Runner, c call[T]) (*T, error) {
	spec, err := r.registry.Lookup(c.agent)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithAgent(ctx, string(c.agent))
	ctx, span := r.tracer.Start(ctx, "agents.invoke", trace.WithAttributes(
		attribute.String("agent", string(c.agent)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := attempt(ctx, r, spec, c)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %s after %s", ErrTimeout, c.agent, r.timeout)
		outcome = "timeout"
	case errors.Is(err, ErrStructuralOutput):
		outcome = "structural"
	default:
		outcome = "error"
	}
	agentCalls.WithLabelValues(string(c.agent), outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		r.logger.Warn(ctx, "agent call failed", zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func attempt[T any](ctx context.Context, r *Runner, spec Spec, c call[T]) (*T, error) {
	input, err := json.Marshal(c.input)
	if err != nil {
		return nil, fmt.Errorf("encoding %s input: %w", spec.Name, err)
	}

	var grounding string
	if c.query != "" && len(spec.Retrieval) > 0 {
		if !spec.Allows(ToolRetrieval) {
			return nil, fmt.Errorf("%w: %s cannot use %s", ErrToolNotAllowed, spec.Name, ToolRetrieval)
		}
		if r.retriever != nil {
			bundle, err := r.retriever.Gather(ctx, c.query, spec.Retrieval)
			if err != nil {
				return nil, err
			}
			grounding = bundle.Render()
			r.logger.Debug(ctx, "grounded agent prompt", zap.Int("matches", bundle.Len()))
		}
	}

	req := Request{
		Agent:  spec.Name,
		System: spec.Instructions + "\nJSON shape:\n" + spec.Shape,
		Prompt: buildPrompt(spec, input, grounding),
		Input:  input,
	}

	out, err := complete(ctx, r, req, c.check)
	var broken *contractError
	if !errors.As(err, &broken) {
		return out, err
	}

	r.logger.Info(ctx, "agent output broke its contract, retrying with correction", zap.Error(broken.err))
	req.Prompt += "\n\nYour previous answer was rejected: " + broken.err.Error() +
		"\nReturn the corrected JSON object only."
	out, err = complete(ctx, r, req, c.check)
	if errors.As(err, &broken) {
		return nil, fmt.Errorf("%w: %s: %v", ErrStructuralOutput, spec.Name, broken.err)
	}
	return out, err
}

// contractError marks an answer that arrived but broke the contract.
type contractError struct{ err error }

func (e *contractError) Error() string { return e.err.Error() }

func complete[T any](ctx context.Context, r *Runner, req Request, check func(*T) error) (*T, error) {
	raw, err := r.completer.Complete(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	body, ok := extractJSON(raw)
	if !ok {
		return nil, &contractError{errors.New("answer contains no JSON object")}
	}
	var out T
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, &contractError{fmt.Errorf("answer does not match the JSON shape: %v", err)}
	}
	if check != nil {
		if err := check(&out); err != nil {
			return nil, &contractError{err}
		}
	}
	return &out, nil
}

func buildPrompt(spec Spec, input []byte, grounding string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Input (%s):\n%s\n", spec.Input, input)
	if grounding != "" {
		sb.WriteString("\n")
		sb.WriteString(grounding)
	}
	return sb.String()
}

// extractJSON returns the outermost JSON object in s, tolerating code
// fences and surrounding prose.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// formatCheck adapts the format rules of the current style guide into a
// contract check.
func (r *Runner) formatCheck(a content.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if r.validator == nil {
		return nil
	}
	if vs := r.validator.ValidateFormat(a); len(vs) > 0 {
		return errors.New(guardrails.Summarize(vs))
	}
	return nil
}

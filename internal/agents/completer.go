package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
)

// ErrCompletion is returned when the completion service fails.
var ErrCompletion = errors.New("completion failed")

// Request is one completion call.
type Request struct {
	Agent  Name
	System string
	Prompt string

	// Input is the structured input the prompt was rendered from. Remote
	// models ignore it; ScriptedCompleter answers from it.
	Input json.RawMessage
}

// Completer is the language-model completion service.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// jsonInstruction is appended to every system prompt. The pinned langchaingo
// has no JSON response mode, so the format is requested in the prompt and
// extractJSON tolerates any prose around the object.
const jsonInstruction = "Respond with a single JSON object and nothing else. Do not wrap it in markdown."

// LangChainCompleter calls a chat model through langchaingo, rate limited.
type LangChainCompleter struct {
	llm     llms.Model
	model   string
	limiter *rate.Limiter

	// singlePrompt folds system and user text into one Human/Assistant
	// prompt for providers that read only the first message part.
	singlePrompt bool
}

// NewCompleter builds the completer named by cfg.Provider.
func NewCompleter(cfg config.LLMConfig) (Completer, error) {
	if cfg.Provider == "scripted" || cfg.Provider == "" {
		return NewScriptedCompleter(), nil
	}

	var (
		model        llms.Model
		err          error
		singlePrompt bool
	)
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey.IsSet() {
			opts = append(opts, openai.WithToken(cfg.APIKey.Value()))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case "anthropic":
		if !cfg.APIKey.IsSet() {
			return nil, fmt.Errorf("anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey.Value()),
			anthropic.WithModel(cfg.Model),
		)
		singlePrompt = true
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &LangChainCompleter{
		llm:          model,
		model:        cfg.Model,
		limiter:      rate.NewLimiter(limit, burst),
		singlePrompt: singlePrompt,
	}, nil
}

// Complete sends a system and a user message and returns the first choice.
func (c *LangChainCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, c.messages(req), llms.WithTemperature(0.4))
	completionDuration.WithLabelValues(string(req.Agent)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCompletion, c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices", ErrCompletion)
	}
	return resp.Choices[0].Content, nil
}

func (c *LangChainCompleter) messages(req Request) []llms.MessageContent {
	system := strings.TrimSpace(req.System + "\n\n" + jsonInstruction)
	if c.singlePrompt {
		prompt := "\n\nHuman: " + system + "\n\n" + req.Prompt + "\n\nAssistant:"
		return []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}
	}
	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt),
	}
}

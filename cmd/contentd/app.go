package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/agents"
	"github.com/fyrsmithlabs/contentfactory/internal/config"
	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
	"github.com/fyrsmithlabs/contentfactory/internal/ingest"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/logging"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/telemetry"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// appOptions selects the optional parts of an app.
type appOptions struct {
	// stderrLogs sends logs to stderr, keeping stdout for command output
	// and the MCP stdio transport.
	stderrLogs bool

	// connectNATS dials cfg.NATS.URL when set and publishes run events.
	connectNATS bool
}

// app holds the wired services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry

	embedder   embeddings.Provider
	store      vectorstore.Store
	retriever  *retrieval.Service
	guide      guardrails.Source
	watcher    *guardrails.Watcher
	controller *orchestrator.Controller
	learner    *learner.Learner
	nc         *nats.Conn

	closers []func() error
}

// newApp initializes telemetry, logging, storage and every service.
//
// Initialization order:
//  1. Telemetry (noop unless enabled), then the logger bridged to it
//  2. Embedding provider and the vector store sized to it
//  3. Retrieval service over the store
//  4. Style guide source, validator and agent runner
//  5. NATS (optional), controller and learner
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			_ = a.Close()
		}
	}()

	var err error
	a.telemetry, err = telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	a.onClose(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.telemetry.Shutdown(shutdownCtx)
	})

	logCfg, err := logging.FromObservability(cfg.Observability)
	if err != nil {
		return nil, err
	}
	if opts.stderrLogs {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}
	a.logger, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a.onClose(func() error {
		_ = a.logger.Sync()
		return nil
	})
	z := a.logger.Underlying()

	a.embedder, err = embeddings.NewProvider(cfg.Embeddings, z.Named("embeddings"))
	if err != nil {
		return nil, fmt.Errorf("initializing embeddings: %w", err)
	}
	a.onClose(a.embedder.Close)

	a.store, err = vectorstore.NewStore(cfg.VectorStore, a.embedder.Dimension(), z.Named("vectorstore"))
	if err != nil {
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}
	a.onClose(a.store.Close)

	a.retriever, err = retrieval.NewService(a.store, a.embedder, retrieval.Config{
		DefaultK:   cfg.Controller.RetrievalK,
		MaxRetries: cfg.Controller.RetrievalRetries,
		Backoff:    cfg.Controller.RetrievalBackoff,
	}, z.Named("retrieval"))
	if err != nil {
		return nil, err
	}

	if err := a.initGuardrails(); err != nil {
		return nil, err
	}
	scanner, err := guardrails.NewGitleaksScanner()
	if err != nil {
		return nil, fmt.Errorf("initializing secret scanner: %w", err)
	}
	validator := guardrails.NewValidator(a.guide, scanner)

	completer, err := agents.NewCompleter(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("initializing completer: %w", err)
	}
	if scripted, ok := completer.(*agents.ScriptedCompleter); ok {
		scripted.Disclosure = a.guide.Current().Disclosure.Text
	}

	runner, err := agents.NewRunner(agents.RunnerConfig{
		Registry: agents.DefaultRegistry(agents.Plan{
			K:             cfg.Controller.RetrievalK,
			Floor:         float32(cfg.Controller.MinSimilarity),
			StyleMinScore: cfg.Controller.StyleMinScore,
		}),
		Completer: completer,
		Retriever: a.retriever,
		Validator: validator,
		Images:    newImageGenerator(cfg.Images),
		Shortener: agents.NewBitlyShortener(cfg.Publish.ShortenerToken.Value(), cfg.Publish.Timeout, z.Named("shortener")),
		Timeout:   cfg.Controller.AgentTimeout,
		Logger:    a.logger,

		QuickstartBaseURL: cfg.Controller.QuickstartBaseURL,
	})
	if err != nil {
		return nil, err
	}

	var events orchestrator.EventSink
	if opts.connectNATS && cfg.NATS.URL != "" {
		a.nc, err = ingest.Connect(cfg.NATS.URL, z.Named("nats"))
		if err != nil {
			return nil, err
		}
		a.onClose(func() error {
			a.nc.Close()
			return nil
		})
		if events, err = ingest.NewEventPublisher(a.nc, cfg.NATS.EventsSubject); err != nil {
			return nil, err
		}
	}

	var publisher orchestrator.Publisher
	if cfg.Publish.WebhookURL != "" {
		publisher = orchestrator.NewWebhookPublisher(cfg.Publish.WebhookURL, cfg.Publish.Timeout)
	}

	a.controller, err = orchestrator.New(orchestrator.Options{
		Runner:    runner,
		Retriever: a.retriever,
		Validator: validator,
		Publisher: publisher,
		Events:    events,
		Logger:    a.logger,
	}, orchestrator.Config{
		DuplicateThreshold: float32(cfg.Controller.DuplicateThreshold),
		DuplicatePolicy:    cfg.Controller.DuplicatePolicy,
		ImageConcurrency:   cfg.Controller.ImageConcurrency,
	})
	if err != nil {
		return nil, err
	}

	a.learner, err = learner.New(a.retriever, learner.Config{
		PromotionThreshold: cfg.Learner.PromotionThreshold,
		Retention:          time.Duration(cfg.Learner.RetentionDays) * 24 * time.Hour,
	}, z.Named("learner"))
	if err != nil {
		return nil, err
	}

	a.logger.Debug(ctx, "services initialized",
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", a.embedder.Model()),
		zap.String("llm", cfg.LLM.Provider),
		zap.Bool("nats", a.nc != nil),
		zap.Bool("telemetry", a.telemetry.IsEnabled()),
	)
	ready = true
	return a, nil
}

// initGuardrails picks the style guide source: the built-in defaults, a
// file read once, or a watched file.
func (a *app) initGuardrails() error {
	gc := a.cfg.Guardrails
	switch {
	case gc.StyleGuidePath == "":
		a.guide = guardrails.Static{Guide: guardrails.DefaultStyleGuide().WithDisclosure(gc.Disclosure)}
	case gc.Watch:
		w, err := guardrails.NewWatcher(gc.StyleGuidePath, gc.Disclosure, a.logger.Underlying().Named("guardrails"))
		if err != nil {
			return err
		}
		a.watcher, a.guide = w, w
		a.onClose(w.Close)
	default:
		g, err := guardrails.LoadStyleGuide(gc.StyleGuidePath)
		if err != nil {
			return err
		}
		a.guide = guardrails.Static{Guide: g.WithDisclosure(gc.Disclosure)}
	}
	return nil
}

func newImageGenerator(cfg config.ImagesConfig) agents.ImageGenerator {
	if cfg.Endpoint == "" {
		return agents.NewPlaceholderImageGenerator(cfg.BaseURL)
	}
	return agents.NewHTTPImageGenerator(cfg.Endpoint, cfg.APIKey.Value(), cfg.Timeout)
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/contentfactory/internal/agents"
	"github.com/fyrsmithlabs/contentfactory/internal/config"
	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
	"github.com/fyrsmithlabs/contentfactory/internal/logging"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// Metadata keys written on history records.
const (
	MetaRunID     = "run_id"
	MetaCreatedAt = "created_at"

	// MetaSubjectID is the artifact an editorial record is about.
	MetaSubjectID = "subject_id"
)

// Config tunes a Controller.
type Config struct {
	// DuplicateThreshold is the inclusive similarity at which input counts
	// as a past campaign. Default: 0.95
	DuplicateThreshold float32

	// DuplicatePolicy is config.PolicyBlock or config.PolicyWarn.
	// Default: warn
	DuplicatePolicy string

	// ImageConcurrency bounds concurrent image renders. Default: 3
	ImageConcurrency int
}

func (c *Config) applyDefaults() {
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = 0.95
	}
	if c.DuplicatePolicy == "" {
		c.DuplicatePolicy = config.PolicyWarn
	}
	if c.ImageConcurrency <= 0 {
		c.ImageConcurrency = 3
	}
}

// Controller runs content jobs. One Controller serves concurrent runs; the
// vector store is the only state runs share.
type Controller struct {
	runner    *agents.Runner
	retriever *retrieval.Service
	gates     []Gate
	publisher Publisher
	events    EventSink
	cfg       Config
	logger    *logging.Logger
	tracer    trace.Tracer
	progress  ProgressCallback
	now       func() time.Time
}

// Options wires a Controller.
type Options struct {
	Runner    *agents.Runner
	Retriever *retrieval.Service
	Validator *guardrails.Validator

	// Publisher handles scheduled runs. Nil records publishing as skipped.
	Publisher Publisher

	// Events receives a RunCompleted event per run. Nil discards them.
	Events EventSink

	Logger *logging.Logger
}

// New creates a Controller.
func New(opts Options, cfg Config) (*Controller, error) {
	if opts.Runner == nil || opts.Retriever == nil || opts.Validator == nil {
		return nil, errors.New("orchestrator: runner, retriever and validator are required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Events == nil {
		opts.Events = nopSink{}
	}
	cfg.applyDefaults()
	return &Controller{
		runner:    opts.Runner,
		retriever: opts.Retriever,
		gates:     []Gate{NewGuardrailGate(opts.Validator)},
		publisher: opts.Publisher,
		events:    opts.Events,
		cfg:       cfg,
		logger:    opts.Logger.Named("orchestrator"),
		tracer:    otel.Tracer("contentfactory.orchestrator"),
		now:       time.Now,
	}, nil
}

// RegisterGate adds a gate applied after the style guide.
func (c *Controller) RegisterGate(g Gate) {
	c.gates = append(c.gates, g)
}

// OnProgress sets the progress callback.
func (c *Controller) OnProgress(cb ProgressCallback) {
	c.progress = cb
}

// run holds the mutable state of one run. Fan-out tasks write through add
// and diag, which serialize on mu.
type run struct {
	id      string
	req     Request
	started time.Time
	pkg     *content.Package

	mu          sync.Mutex
	diagnostics []content.Diagnostic
	artifacts   map[content.Type]content.Artifact
	images      []*content.ImageAsset
	concepts    []content.ImageConcept
	rejections  []agents.Rejection

	writerFailures int
}

func (r *run) diag(d content.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, d)
}

func (r *run) fail(kind error, stage Stage, t content.Type, err error) *RunError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &RunError{
		Kind:         kind,
		RunID:        r.id,
		Stage:        stage,
		ArtifactType: t,
		Diagnostics:  append([]content.Diagnostic(nil), r.diagnostics...),
		Err:          err,
	}
}

// survivors lists generated artifacts in package order.
func (r *run) survivors() []content.Artifact {
	var out []content.Artifact
	for _, t := range content.WriterTypes {
		if a, ok := r.artifacts[t]; ok {
			out = append(out, a)
		}
	}
	for _, img := range r.images {
		if img != nil {
			out = append(out, img)
		}
	}
	return out
}

// Run executes one content run. It returns the package, or a *RunError
// for fatal failures.
func (c *Controller) Run(ctx context.Context, req Request) (pkg *content.Package, err error) {
	if err := guardrails.CheckInput(req.ProductInput, req.CanonicalURL); err != nil {
		return nil, err
	}

	r := &run{
		id:        uuid.NewString(),
		req:       req,
		started:   c.now().UTC(),
		artifacts: make(map[content.Type]content.Artifact),
	}
	ctx = logging.WithRunID(ctx, r.id)
	ctx, span := c.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(attribute.String("run.id", r.id)))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "failed"
			var re *RunError
			if errors.As(err, &re) {
				outcome = string(re.Stage)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		runsTotal.WithLabelValues(outcome).Inc()
		span.End()
		c.emit(ctx, r, pkg, err)
	}()

	c.logger.Info(ctx, "run started", zap.Bool("scheduled", req.ScheduleTime != nil))

	dup, err := c.checkDuplicate(ctx, r)
	if err != nil {
		return nil, err
	}

	brief, err := c.plan(ctx, r)
	if err != nil {
		return nil, err
	}
	r.pkg = &content.Package{RunID: r.id, CreatedAt: r.started, Brief: *brief, Images: []content.ImageAsset{}}
	if dup != nil {
		r.pkg.Duplicate = dup
	}

	c.generate(ctx, r, brief)
	r.pkg.WriterFailures = r.writerFailures
	c.renderImages(ctx, r, brief)

	kept, err := c.edit(ctx, r, brief)
	if err != nil {
		return nil, err
	}
	accepted := c.validate(ctx, r, kept)
	if len(accepted) == 0 {
		c.report(r, StageGuardrails, StatusFailed, "no artifact survived", 0)
		return nil, r.fail(ErrEmptyPackage, StageGuardrails, "", nil)
	}
	for _, a := range accepted {
		r.pkg.Add(a)
	}

	c.persist(ctx, r, accepted)
	c.publish(ctx, r)

	r.mu.Lock()
	r.pkg.Diagnostics = append([]content.Diagnostic(nil), r.diagnostics...)
	r.mu.Unlock()

	c.logger.Info(ctx, "run completed",
		zap.Int("artifacts", r.pkg.Len()),
		zap.Int("diagnostics", len(r.pkg.Diagnostics)),
		zap.Duration("elapsed", c.now().Sub(r.started)),
	)
	return r.pkg, nil
}

// stage wraps one stage with logging, progress, tracing and timing.
func (c *Controller) stage(ctx context.Context, r *run, s Stage, fn func(ctx context.Context) error) error {
	ctx = logging.WithStage(ctx, string(s))
	ctx, span := c.tracer.Start(ctx, "orchestrator."+string(s))
	defer span.End()

	c.report(r, s, StatusStarted, "", 0)
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	stageDuration.WithLabelValues(string(s)).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.report(r, s, StatusFailed, err.Error(), elapsed)
		return err
	}
	c.logger.Debug(ctx, "stage completed", zap.Duration("elapsed", elapsed))
	c.report(r, s, StatusCompleted, "", elapsed)
	return nil
}

func (c *Controller) report(r *run, s Stage, status StageStatus, msg string, elapsed time.Duration) {
	if c.progress != nil {
		c.progress(StageProgress{RunID: r.id, Stage: s, Status: status, Message: msg, Elapsed: elapsed})
	}
}

// checkDuplicate is stage 1. A blocked duplicate returns before any agent
// is called.
func (c *Controller) checkDuplicate(ctx context.Context, r *run) (*content.DuplicateNotice, error) {
	if spec, err := c.runner.Registry().Lookup(agents.Planner); err != nil || !spec.Allows(agents.ToolDuplicateCheck) {
		c.report(r, StageDuplicateCheck, StatusSkipped, "planner has no duplicate check", 0)
		return nil, nil
	}
	var notice *content.DuplicateNotice
	err := c.stage(ctx, r, StageDuplicateCheck, func(ctx context.Context) error {
		check, err := c.retriever.CheckDuplicate(ctx, r.req.ProductInput, c.cfg.DuplicateThreshold)
		if err != nil {
			return r.fail(ErrExternalService, StageDuplicateCheck, "", err)
		}
		if !check.IsDuplicate {
			return nil
		}
		top, _ := check.Top()
		notice = &content.DuplicateNotice{NearestID: top.ID, Similarity: top.Similarity, Threshold: check.Threshold}
		if c.cfg.DuplicatePolicy == config.PolicyBlock {
			return r.fail(ErrDuplicateCampaign, StageDuplicateCheck, "",
				fmt.Errorf("input matches %s at similarity %.3f", top.ID, top.Similarity))
		}
		r.diag(content.Diagnostic{
			Kind:    DiagDuplicateCampaign,
			Stage:   string(StageDuplicateCheck),
			Message: fmt.Sprintf("input resembles past campaign %s (similarity %.3f >= %.2f)", top.ID, top.Similarity, check.Threshold),
		})
		c.logger.Warn(ctx, "duplicate campaign, continuing under warn policy",
			zap.String("nearest_id", top.ID),
			zap.Float32("similarity", top.Similarity),
		)
		return nil
	})
	return notice, err
}

// plan is stage 2. Without a brief there is nothing to generate.
func (c *Controller) plan(ctx context.Context, r *run) (*content.Brief, error) {
	var brief *content.Brief
	err := c.stage(ctx, r, StagePlanning, func(ctx context.Context) error {
		b, err := c.runner.Plan(ctx, agents.PlanInput{ProductInput: r.req.ProductInput, CanonicalURL: r.req.CanonicalURL})
		if err != nil {
			return r.fail(ErrFatalPlanning, StagePlanning, "", err)
		}
		brief = b
		return nil
	})
	return brief, err
}

// generate is stage 3: the four writers and the art director run
// concurrently and are joined before it returns. Each failure only
// removes its own artifact.
func (c *Controller) generate(ctx context.Context, r *run, brief *content.Brief) {
	_ = c.stage(ctx, r, StageGeneration, func(ctx context.Context) error {
		var g errgroup.Group
		slug := brief.Slug()
		for _, t := range content.WriterTypes {
			id := content.NewContentID(slug, t, 0, c.now())
			g.Go(func() error {
				a, err := c.write(ctx, t, brief, id)
				if err != nil {
					c.dropArtifact(ctx, r, StageGeneration, t, id, err)
					return nil
				}
				r.mu.Lock()
				r.artifacts[t] = a
				r.mu.Unlock()
				return nil
			})
		}
		g.Go(func() error {
			concepts, err := c.runner.DirectArt(ctx, brief)
			if err != nil {
				c.dropArtifact(ctx, r, StageGeneration, content.TypeImage, "", err)
				return nil
			}
			r.mu.Lock()
			r.concepts = concepts
			r.mu.Unlock()
			return nil
		})
		_ = g.Wait()

		r.mu.Lock()
		r.writerFailures = len(content.WriterTypes) - len(r.artifacts)
		failed := r.writerFailures
		r.mu.Unlock()
		c.logger.Info(ctx, "generation joined", zap.Int("failed_writers", failed))
		return nil
	})
}

func (c *Controller) write(ctx context.Context, t content.Type, brief *content.Brief, id string) (content.Artifact, error) {
	if t == content.TypeBlog {
		return c.runner.WriteBlog(ctx, brief, id)
	}
	return c.runner.WritePost(ctx, t, brief, id)
}

// renderImages is stage 4: one bounded fan-out render per concept.
func (c *Controller) renderImages(ctx context.Context, r *run, brief *content.Brief) {
	r.mu.Lock()
	concepts := r.concepts
	r.mu.Unlock()
	if len(concepts) == 0 {
		c.report(r, StageImages, StatusSkipped, "no image concepts", 0)
		return
	}

	_ = c.stage(ctx, r, StageImages, func(ctx context.Context) error {
		r.images = make([]*content.ImageAsset, len(concepts))
		var g errgroup.Group
		g.SetLimit(c.cfg.ImageConcurrency)
		slug := brief.Slug()
		for i, concept := range concepts {
			id := content.NewContentID(slug, content.TypeImage, i+1, c.now())
			g.Go(func() error {
				img, err := c.runner.MakeImage(ctx, brief, concept, id)
				if err != nil {
					c.dropArtifact(ctx, r, StageImages, content.TypeImage, id, err)
					return nil
				}
				r.mu.Lock()
				r.images[i] = img
				r.mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	})
}

func (c *Controller) dropArtifact(ctx context.Context, r *run, s Stage, t content.Type, id string, err error) {
	kind := classify(err)
	artifactsDropped.WithLabelValues(string(s), kind).Inc()
	r.diag(content.Diagnostic{Kind: kind, Stage: string(s), ArtifactType: t, ContentID: id, Message: err.Error()})
	c.logger.Warn(ctx, "artifact dropped",
		zap.String("artifact_type", string(t)),
		zap.String("content_id", id),
		zap.String("kind", kind),
		zap.Error(err),
	)
}

// edit is stage 5. The editor sees every survivor at once. If nothing
// survived generation the editor is not called and the run is empty.
func (c *Controller) edit(ctx context.Context, r *run, brief *content.Brief) ([]content.Artifact, error) {
	survivors := r.survivors()
	if len(survivors) == 0 {
		c.report(r, StageEditorial, StatusSkipped, "no artifacts to review", 0)
		return nil, r.fail(ErrEmptyPackage, StageEditorial, "", errors.New("every writer and image task failed"))
	}

	var kept []content.Artifact
	err := c.stage(ctx, r, StageEditorial, func(ctx context.Context) error {
		review, err := c.runner.Edit(ctx, brief, survivors)
		if err != nil {
			r.diag(content.Diagnostic{Kind: classify(err), Stage: string(StageEditorial), Message: err.Error()})
			return r.fail(ErrEmptyPackage, StageEditorial, "", fmt.Errorf("editorial pass failed: %w", err))
		}
		for _, rej := range review.Rejected {
			artifactsDropped.WithLabelValues(string(StageEditorial), DiagEditorRejection).Inc()
			r.diag(content.Diagnostic{
				Kind:         DiagEditorRejection,
				Stage:        string(StageEditorial),
				ArtifactType: rej.ArtifactType,
				ContentID:    rej.ContentID,
				Message:      rej.Reason,
			})
		}
		r.mu.Lock()
		r.rejections = review.Rejected
		r.mu.Unlock()
		kept = review.Kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return nil, r.fail(ErrEmptyPackage, StageEditorial, "", errors.New("editor rejected every artifact"))
	}
	return kept, nil
}

// validate is stage 6. Violations reject; nothing is corrected.
func (c *Controller) validate(ctx context.Context, r *run, kept []content.Artifact) []content.Artifact {
	var accepted []content.Artifact
	_ = c.stage(ctx, r, StageGuardrails, func(ctx context.Context) error {
		for _, a := range kept {
			vs := runGates(ctx, c.gates, a)
			if len(vs) == 0 {
				accepted = append(accepted, a)
				continue
			}
			artifactsDropped.WithLabelValues(string(StageGuardrails), DiagGuardrailRejection).Inc()
			r.diag(content.Diagnostic{
				Kind:         DiagGuardrailRejection,
				Stage:        string(StageGuardrails),
				ArtifactType: a.Kind(),
				ContentID:    a.ID(),
				Message:      guardrails.Summarize(vs),
			})
			c.logger.Info(ctx, "artifact rejected by guardrails",
				zap.String("content_id", a.ID()),
				zap.Int("violations", len(vs)),
			)
		}
		return nil
	})
	return accepted
}

// persist is stage 7: accepted artifacts, the brief, editorial rejections
// and the campaign input go into history. A failed write is a diagnostic;
// the package already exists.
func (c *Controller) persist(ctx context.Context, r *run, accepted []content.Artifact) {
	_ = c.stage(ctx, r, StagePersistence, func(ctx context.Context) error {
		created := r.started.Format(time.RFC3339Nano)
		records := make([]vectorstore.Record, 0, len(accepted)+1)
		for _, a := range accepted {
			md := a.Metadata()
			md[MetaRunID] = r.id
			md[MetaCreatedAt] = created
			records = append(records, vectorstore.Record{ID: a.ID(), Text: a.Text(), Metadata: md})
		}
		record := func(t content.Type, index int, text string) vectorstore.Record {
			return vectorstore.Record{
				ID:   content.NewContentID(r.pkg.Brief.Slug(), t, index, r.started),
				Text: text,
				Metadata: map[string]string{
					retrieval.MetaContentType: string(t),
					MetaRunID:                 r.id,
					MetaCreatedAt:             created,
				},
			}
		}
		records = append(records, record(content.TypeBrief, 0, r.pkg.Brief.Text()))
		r.mu.Lock()
		for i, rej := range r.rejections {
			rec := record(content.TypeEdit, i+1, fmt.Sprintf("Rejected %s: %s", rej.ArtifactType, rej.Reason))
			rec.Metadata[MetaSubjectID] = rej.ContentID
			records = append(records, rec)
		}
		r.mu.Unlock()
		records = append(records, vectorstore.Record{
			ID:   content.NewContentID(r.pkg.Brief.Slug(), content.TypeCampaign, 0, r.started),
			Text: r.req.ProductInput,
			Metadata: map[string]string{
				retrieval.MetaContentType: string(content.TypeCampaign),
				MetaRunID:                 r.id,
				MetaCreatedAt:             created,
			},
		})

		for i := range records {
			vec, err := c.retriever.Embed(ctx, records[i].Text)
			if err != nil {
				c.persistFailed(ctx, r, records[i].ID, err)
				continue
			}
			records[i].Embedding = vec
			if err := c.retriever.Store().Upsert(ctx, vectorstore.CollectionHistory, records[i]); err != nil {
				c.persistFailed(ctx, r, records[i].ID, err)
			}
		}
		return nil
	})
}

func (c *Controller) persistFailed(ctx context.Context, r *run, id string, err error) {
	r.diag(content.Diagnostic{Kind: DiagExternalService, Stage: string(StagePersistence), ContentID: id, Message: err.Error()})
	c.logger.Error(ctx, "history write failed", zap.String("content_id", id), zap.Error(err))
}

// publish is stage 8. It is attempted once and never fails the run.
func (c *Controller) publish(ctx context.Context, r *run) {
	at := r.req.ScheduleTime
	if at == nil {
		c.report(r, StagePublish, StatusSkipped, "no schedule time", 0)
		return
	}
	_ = c.stage(ctx, r, StagePublish, func(ctx context.Context) error {
		result := &content.PublishResult{ScheduledFor: at.UTC(), Status: "scheduled"}
		if c.publisher == nil {
			result.Status = "skipped"
		} else if err := c.publisher.Publish(ctx, r.pkg, *at); err != nil {
			result.Status = "failed"
			result.Error = err.Error()
			r.diag(content.Diagnostic{Kind: DiagPublishFailure, Stage: string(StagePublish), Message: err.Error()})
			c.logger.Warn(ctx, "publish hook failed", zap.Error(err))
		}
		r.pkg.Publish = result
		return nil
	})
}

package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
)

// RunCompleted is emitted once per run, successful or not.
type RunCompleted struct {
	RunID       string    `json:"run_id"`
	Succeeded   bool      `json:"succeeded"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Stage       Stage     `json:"stage,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	ContentIDs  []string  `json:"content_ids,omitempty"`
	Diagnostics int       `json:"diagnostics"`
	Duplicate   bool      `json:"duplicate"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedMS   int64     `json:"elapsed_ms"`

	// WriterFailures counts writers that produced nothing.
	WriterFailures int `json:"writer_failures"`
}

// EventSink receives run events. Delivery is best effort.
type EventSink interface {
	RunCompleted(ctx context.Context, ev RunCompleted) error
}

type nopSink struct{}

func (nopSink) RunCompleted(context.Context, RunCompleted) error { return nil }

var failureKinds = []struct {
	err  error
	name string
}{
	{ErrDuplicateCampaign, "duplicate_campaign"},
	{ErrFatalPlanning, "fatal_planning"},
	{ErrEmptyPackage, "empty_package"},
	{ErrExternalService, "external_service"},
}

// FailureKind names the failure kind of a run error, or "" when err is not
// a *RunError.
func FailureKind(err error) string {
	var re *RunError
	if !errors.As(err, &re) {
		return ""
	}
	for _, k := range failureKinds {
		if errors.Is(re.Kind, k.err) {
			return k.name
		}
	}
	return "run_failed"
}

func (c *Controller) emit(ctx context.Context, r *run, pkg *content.Package, err error) {
	ev := RunCompleted{
		RunID:     r.id,
		Succeeded: err == nil,
		StartedAt: r.started,
		ElapsedMS: c.now().Sub(r.started).Milliseconds(),
	}
	r.mu.Lock()
	ev.WriterFailures = r.writerFailures
	r.mu.Unlock()
	if pkg != nil {
		ev.ProductName = pkg.Brief.ProductName
		ev.Diagnostics = len(pkg.Diagnostics)
		ev.Duplicate = pkg.Duplicate != nil
		for _, a := range pkg.Artifacts() {
			ev.ContentIDs = append(ev.ContentIDs, a.ID())
		}
	}
	var re *RunError
	if errors.As(err, &re) {
		ev.Stage = re.Stage
		ev.Diagnostics = len(re.Diagnostics)
		ev.FailureKind = FailureKind(err)
	}
	if sendErr := c.events.RunCompleted(context.WithoutCancel(ctx), ev); sendErr != nil {
		c.logger.Warn(ctx, "run event not delivered", zap.Error(sendErr))
	}
}

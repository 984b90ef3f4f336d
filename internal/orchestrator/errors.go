package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/contentfactory/internal/agents"
	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
)

// Failure kinds. A *RunError matches its kind with errors.Is.
var (
	// ErrFatalPlanning means no brief was produced; the run aborts.
	ErrFatalPlanning = errors.New("planning failed")

	// ErrWriterFailure means one artifact could not be produced.
	ErrWriterFailure = errors.New("writer failed")

	// ErrStructuralOutput means an agent answer broke its contract twice.
	ErrStructuralOutput = errors.New("structural output failure")

	// ErrGuardrailRejection means an artifact violated the style guide.
	ErrGuardrailRejection = errors.New("guardrail rejection")

	// ErrDuplicateCampaign means the input matches a past campaign and the
	// policy blocks duplicates.
	ErrDuplicateCampaign = errors.New("duplicate campaign")

	// ErrEmptyPackage means no artifact survived the run.
	ErrEmptyPackage = errors.New("empty package")

	// ErrExternalService means the store, embedder or image service failed.
	ErrExternalService = errors.New("external service failure")
)

// RunError is a fatal run failure.
type RunError struct {
	Kind         error
	RunID        string
	Stage        Stage
	ArtifactType content.Type

	// Diagnostics holds the non-fatal failures recorded before the run failed.
	Diagnostics []content.Diagnostic

	Err error
}

func (e *RunError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s: %s", e.RunID, e.Stage)
	if e.ArtifactType != "" {
		fmt.Fprintf(&sb, " (%s)", e.ArtifactType)
	}
	fmt.Fprintf(&sb, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify maps an agent failure to a diagnostic kind.
func classify(err error) string {
	switch {
	case errors.Is(err, agents.ErrStructuralOutput):
		return DiagStructuralOutput
	case errors.Is(err, retrieval.ErrUnavailable), errors.Is(err, agents.ErrImageService):
		return DiagExternalService
	default:
		return DiagWriterFailure
	}
}

package orchestrator

import (
	"time"
)

// Stage is one step of a run.
type Stage string

const (
	StageDuplicateCheck Stage = "duplicate_check"
	StagePlanning       Stage = "planning"
	StageGeneration     Stage = "generation"
	StageImages         Stage = "images"
	StageEditorial      Stage = "editorial"
	StageGuardrails     Stage = "guardrails"
	StagePersistence    Stage = "persistence"
	StagePublish        Stage = "publish"
)

// AllStages returns the stages in execution order.
func AllStages() []Stage {
	return []Stage{
		StageDuplicateCheck, StagePlanning, StageGeneration, StageImages,
		StageEditorial, StageGuardrails, StagePersistence, StagePublish,
	}
}

// Request starts a run.
type Request struct {
	// ProductInput is the raw product description. Required.
	ProductInput string `json:"product_input"`

	// CanonicalURL is the landing page links point at.
	CanonicalURL string `json:"canonical_url,omitempty"`

	// ScheduleTime, when set, triggers the publish hook after packaging.
	ScheduleTime *time.Time `json:"schedule_time,omitempty"`
}

// StageStatus is the state reported for a stage.
type StageStatus string

const (
	StatusStarted   StageStatus = "started"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
	StatusSkipped   StageStatus = "skipped"
)

// StageProgress reports progress during a run.
type StageProgress struct {
	RunID   string        `json:"run_id"`
	Stage   Stage         `json:"stage"`
	Status  StageStatus   `json:"status"`
	Message string        `json:"message,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// ProgressCallback receives progress updates. It is called from the run's
// goroutine and must not block.
type ProgressCallback func(StageProgress)

// Diagnostic kinds recorded on a package.
const (
	DiagWriterFailure      = "writer_failure"
	DiagStructuralOutput   = "structural_output"
	DiagExternalService    = "external_service"
	DiagEditorRejection    = "editor_rejection"
	DiagGuardrailRejection = "guardrail_rejection"
	DiagDuplicateCampaign  = "duplicate_campaign"
	DiagPublishFailure     = "publish_failure"
)

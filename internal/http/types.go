package http

import (
	"time"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// GenerateRequest is the request body for POST /api/v1/packages.
type GenerateRequest struct {
	ProductInput string     `json:"product_input"`
	CanonicalURL string     `json:"canonical_url,omitempty"`
	ScheduleTime *time.Time `json:"schedule_time,omitempty"`
}

// RunFailure is the response body for a run that produced no package.
type RunFailure struct {
	Error       string               `json:"error"`
	Kind        string               `json:"kind,omitempty"`
	RunID       string               `json:"run_id,omitempty"`
	Stage       string               `json:"stage,omitempty"`
	Diagnostics []content.Diagnostic `json:"diagnostics,omitempty"`
}

// MetricsRequest is the request body for POST /api/v1/metrics.
type MetricsRequest struct {
	ContentID string `json:"content_id"`
	learner.Metrics
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	Collections []vectorstore.CollectionStats `json:"collections"`
}

// TopResponse is the response body for GET /api/v1/top.
type TopResponse struct {
	ContentType content.Type                `json:"content_type,omitempty"`
	Records     []learner.PerformanceRecord `json:"records"`
}

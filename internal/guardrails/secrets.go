package guardrails

import (
	"fmt"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// SecretFinding is a credential-like string found in generated text.
type SecretFinding struct {
	RuleID string
	Line   int
}

// SecretScanner finds credentials in text.
type SecretScanner interface {
	Scan(text string) []SecretFinding
}

// GitleaksScanner scans with the default gitleaks rule set.
type GitleaksScanner struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaksScanner compiles the default gitleaks rules. This is slow;
// build one scanner per process.
func NewGitleaksScanner() (*GitleaksScanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	return &GitleaksScanner{detector: d}, nil
}

// Scan returns the rule ids that matched. Secret values are not kept.
func (s *GitleaksScanner) Scan(text string) []SecretFinding {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	findings := s.detector.DetectString(text)
	s.mu.Unlock()

	out := make([]SecretFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, SecretFinding{RuleID: f.RuleID, Line: f.StartLine})
	}
	return out
}

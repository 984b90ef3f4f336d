package guardrails

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxInputChars bounds the product input of one run.
const MaxInputChars = 20000

// ErrInvalidInput is returned for a run request that cannot start.
var ErrInvalidInput = errors.New("invalid run input")

// CheckInput validates a run request before any agent is called.
func CheckInput(productInput, canonicalURL string) error {
	var issues []string
	trimmed := strings.TrimSpace(productInput)
	switch {
	case trimmed == "":
		issues = append(issues, "product input is empty")
	case utf8.RuneCountInString(trimmed) > MaxInputChars:
		issues = append(issues, fmt.Sprintf("product input exceeds %d characters", MaxInputChars))
	}
	if canonicalURL != "" {
		if err := checkURL(canonicalURL); err != nil {
			issues = append(issues, err.Error())
		}
	}
	if len(issues) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(issues, "; "))
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("canonical url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("canonical url must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("canonical url has no host: %q", raw)
	}
	return nil
}

package content

import (
	"fmt"
	"net/url"
	"strings"
)

// Brief is the strategic plan produced by the planner and read by every
// downstream agent. It is never modified after planning.
type Brief struct {
	// ProductName is the display name, e.g. "Seedance 1.0".
	ProductName string `json:"product_name"`

	// Summary is a one-paragraph description of what the product does.
	Summary string `json:"summary"`

	// Audience describes who the campaign addresses.
	Audience string `json:"audience,omitempty"`

	// TargetSegments lists audience segments in priority order.
	TargetSegments []string `json:"target_segments"`

	// KeyMessages are the points every artifact should support.
	KeyMessages []string `json:"key_messages"`

	// Keywords feed SEO metadata and hashtags.
	Keywords []string `json:"keywords,omitempty"`

	// Angles are the storytelling hooks writers may pick from.
	Angles []string `json:"angles,omitempty"`

	// Tone is the voice guidance, e.g. "confident, concrete".
	Tone string `json:"tone,omitempty"`

	// CTA is the call to action.
	CTA string `json:"cta,omitempty"`

	// CanonicalURL is the landing page links point at.
	CanonicalURL string `json:"canonical_url,omitempty"`

	// VisualTheme guides the art director.
	VisualTheme string `json:"visual_theme,omitempty"`
}

// Validate checks the fields downstream agents depend on.
func (b *Brief) Validate() error {
	var missing []string
	if strings.TrimSpace(b.ProductName) == "" {
		missing = append(missing, "product_name")
	}
	if strings.TrimSpace(b.Summary) == "" {
		missing = append(missing, "summary")
	}
	if len(nonEmpty(b.TargetSegments)) == 0 {
		missing = append(missing, "target_segments")
	}
	if len(nonEmpty(b.KeyMessages)) == 0 {
		missing = append(missing, "key_messages")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidBrief, strings.Join(missing, ", "))
	}
	if b.CanonicalURL != "" {
		if _, err := url.ParseRequestURI(b.CanonicalURL); err != nil {
			return fmt.Errorf("%w: canonical_url: %v", ErrInvalidBrief, err)
		}
	}
	return nil
}

// Slug returns the product slug used in content ids and UTM campaigns.
func (b *Brief) Slug() string {
	return Slugify(b.ProductName)
}

// Text renders the brief as plain text for prompts.
func (b *Brief) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product: %s\n", b.ProductName)
	fmt.Fprintf(&sb, "Summary: %s\n", b.Summary)
	if b.Audience != "" {
		fmt.Fprintf(&sb, "Audience: %s\n", b.Audience)
	}
	fmt.Fprintf(&sb, "Segments: %s\n", strings.Join(b.TargetSegments, ", "))
	sb.WriteString("Key messages:\n")
	for _, m := range b.KeyMessages {
		fmt.Fprintf(&sb, "- %s\n", m)
	}
	if len(b.Angles) > 0 {
		fmt.Fprintf(&sb, "Angles: %s\n", strings.Join(b.Angles, "; "))
	}
	if b.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", b.Tone)
	}
	if b.CTA != "" {
		fmt.Fprintf(&sb, "CTA: %s\n", b.CTA)
	}
	if b.CanonicalURL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", b.CanonicalURL)
	}
	return sb.String()
}

func nonEmpty(xs []string) []string {
	var out []string
	for _, x := range xs {
		if strings.TrimSpace(x) != "" {
			out = append(out, x)
		}
	}
	return out
}

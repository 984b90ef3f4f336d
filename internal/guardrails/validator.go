package guardrails

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
)

// Rule names a guardrail check.
type Rule string

const (
	RuleStructure       Rule = "structure"
	RuleBannedPhrase    Rule = "banned_phrase"
	RuleProhibitedClaim Rule = "prohibited_claim"
	RuleDisclosure      Rule = "disclosure"
	RuleLength          Rule = "length"
	RuleLines           Rule = "lines"
	RuleEmoji           Rule = "emoji"
	RuleJargon          Rule = "jargon"
	RuleSecret          Rule = "secret"
)

// Violation is one failed check.
type Violation struct {
	Rule         Rule         `json:"rule"`
	ArtifactType content.Type `json:"artifact_type"`
	ContentID    string       `json:"content_id,omitempty"`
	Message      string       `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// Summarize joins violation messages for logs and diagnostics.
func Summarize(vs []Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

type checker struct {
	a   content.Artifact
	g   *StyleGuide
	out []Violation
}

func (c *checker) add(rule Rule, format string, args ...any) {
	c.out = append(c.out, Violation{
		Rule:         rule,
		ArtifactType: c.a.Kind(),
		ContentID:    c.a.ID(),
		Message:      fmt.Sprintf(format, args...),
	})
}

// Check runs every rule against a. A nil scanner skips the secret check.
// An empty result means the artifact is accepted.
func Check(a content.Artifact, g *StyleGuide, scanner SecretScanner) []Violation {
	g.compile()
	c := &checker{a: a, g: g}

	if err := a.Validate(); err != nil {
		c.add(RuleStructure, "%v", err)
	}
	text := a.Text()
	for _, re := range g.banned {
		if m := re.FindString(text); m != "" {
			c.add(RuleBannedPhrase, "remove hype phrase %q", m)
		}
	}
	for _, re := range g.claims {
		if m := re.FindString(text); m != "" {
			c.add(RuleProhibitedClaim, "avoid prohibited claim %q", m)
		}
	}
	c.disclosure()
	c.format()
	c.jargon()

	if scanner != nil && g.DetectSecrets {
		for _, f := range scanner.Scan(text) {
			c.add(RuleSecret, "possible credential (%s) on line %d", f.RuleID, f.Line)
		}
	}
	return c.out
}

// CheckFormat runs only the size and shape rules. Agents use it to decide
// whether an output meets its contract.
func CheckFormat(a content.Artifact, g *StyleGuide) []Violation {
	g.compile()
	c := &checker{a: a, g: g}
	c.format()
	return c.out
}

func (c *checker) disclosure() {
	d := c.g.Disclosure.Text
	if d == "" || !c.g.typesSet[c.a.Kind()] {
		return
	}
	needle := strings.ToLower(d)
	switch v := c.a.(type) {
	case *content.SocialPost:
		for i, text := range v.Variants {
			if !strings.Contains(strings.ToLower(text), needle) {
				c.add(RuleDisclosure, "variant %d is missing disclosure %q", i+1, d)
			}
		}
	default:
		if !strings.Contains(strings.ToLower(c.a.Text()), needle) {
			c.add(RuleDisclosure, "missing disclosure %q", d)
		}
	}
}

func (c *checker) format() {
	l := c.g.Limits
	switch v := c.a.(type) {
	case *content.BlogArticle:
		if n := CountChars(v.MetaDescription); n > l.MetaDescriptionMax {
			c.add(RuleLength, "meta description has %d characters, limit %d", n, l.MetaDescriptionMax)
		}
	case *content.SocialPost:
		limit := l.XChars
		if v.Platform == content.PlatformLinkedIn {
			limit = l.LinkedInChars
		}
		for i, text := range v.Variants {
			if n := CountChars(text); n > limit {
				c.add(RuleLength, "%s variant %d has %d characters, limit %d", v.Kind(), i+1, n, limit)
			}
			if v.Persona != content.PersonaCreator {
				continue
			}
			if n := CountLines(text); n > c.g.Creator.MaxLines {
				c.add(RuleLines, "creator variant %d has %d lines, limit %d", i+1, n, c.g.Creator.MaxLines)
			}
			if n := CountEmojis(text); n > c.g.Creator.MaxEmojis {
				c.add(RuleEmoji, "creator variant %d has %d emojis, limit %d", i+1, n, c.g.Creator.MaxEmojis)
			}
		}
	case *content.ImageAsset:
		if n := CountChars(v.AltText); n > l.AltTextMax {
			c.add(RuleLength, "alt text has %d characters, limit %d", n, l.AltTextMax)
		}
	}
}

func (c *checker) jargon() {
	post, ok := c.a.(*content.SocialPost)
	if !ok || post.Persona != content.PersonaCreator {
		return
	}
	for i, text := range post.Variants {
		for _, re := range c.g.jargon {
			if m := re.FindString(text); m != "" {
				c.add(RuleJargon, "creator variant %d uses developer jargon %q", i+1, m)
			}
		}
	}
}

// Validate runs every rule against a with the current guide.
func (v *Validator) Validate(a content.Artifact) []Violation {
	return Check(a, v.source.Current(), v.scanner)
}

// ValidateFormat runs only the size and shape rules with the current guide.
func (v *Validator) ValidateFormat(a content.Artifact) []Violation {
	return CheckFormat(a, v.source.Current())
}

// Validator checks artifacts against the guide currently in force.
type Validator struct {
	source  Source
	scanner SecretScanner
}

// NewValidator pairs a guide source with an optional secret scanner.
func NewValidator(source Source, scanner SecretScanner) *Validator {
	return &Validator{source: source, scanner: scanner}
}

// Guide returns the current guide.
func (v *Validator) Guide() *StyleGuide { return v.source.Current() }

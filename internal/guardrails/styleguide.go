package guardrails

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
)

// ErrInvalidStyleGuide is returned for a style guide that cannot be used.
var ErrInvalidStyleGuide = errors.New("invalid style guide")

// StyleGuide holds the brand rules artifacts are checked against.
//
// A StyleGuide must not be modified after first use.
type StyleGuide struct {
	// BannedPhrases are hype terms that must not appear. Matched as whole
	// words, case-insensitively.
	BannedPhrases []string `toml:"banned_phrases"`

	// ProhibitedClaims are claim categories that must not appear.
	ProhibitedClaims []string `toml:"prohibited_claims"`

	Disclosure DisclosureRule `toml:"disclosure"`
	Limits     Limits         `toml:"limits"`
	Creator    CreatorRules   `toml:"creator"`

	// DetectSecrets enables the leaked credential check.
	DetectSecrets bool `toml:"detect_secrets"`

	once     sync.Once
	banned   []*regexp.Regexp
	claims   []*regexp.Regexp
	jargon   []*regexp.Regexp
	typesSet map[content.Type]bool
}

// DisclosureRule requires a text in the listed artifact types.
type DisclosureRule struct {
	// Text is the required disclosure, e.g. "#ad". Empty disables the rule.
	Text string `toml:"text"`

	// Types lists the artifact types that must carry it.
	Types []string `toml:"types"`
}

// Limits are per-format size constraints, counted in user-perceived
// characters.
type Limits struct {
	XChars             int `toml:"x_chars"`
	LinkedInChars      int `toml:"linkedin_chars"`
	MetaDescriptionMax int `toml:"meta_description_max"`
	AltTextMax         int `toml:"alt_text_max"`
}

// CreatorRules shape the creator persona voice.
type CreatorRules struct {
	MaxLines  int      `toml:"max_lines"`
	MaxEmojis int      `toml:"max_emojis"`
	Jargon    []string `toml:"jargon"`
}

// DefaultStyleGuide returns the built-in rules.
func DefaultStyleGuide() *StyleGuide {
	return &StyleGuide{
		BannedPhrases: []string{
			"revolutionary", "game-changing", "magical", "100% guaranteed",
			"state-of-the-art", "best-in-class", "SOTA", "no hallucinations", "perfectly safe",
		},
		ProhibitedClaims: []string{
			"future financial performance",
			"health/medical efficacy",
			"deceptive benchmarks",
			"benchmark superiority without public citation",
		},
		Disclosure: DisclosureRule{
			Types: []string{string(content.TypeXDev), string(content.TypeXCreator), string(content.TypeLinkedIn)},
		},
		Limits: Limits{
			XChars:             280,
			LinkedInChars:      3000,
			MetaDescriptionMax: 160,
			AltTextMax:         250,
		},
		Creator: CreatorRules{
			MaxLines:  2,
			MaxEmojis: 1,
			Jargon: []string{
				"API", "SDK", "endpoint", "latency", "JSON", "REST", "webhook",
				"curl", "p95", "throughput", "rate limit",
			},
		},
		DetectSecrets: true,
	}
}

// LoadStyleGuide reads a TOML style guide. Keys missing from the file keep
// their default values.
func LoadStyleGuide(path string) (*StyleGuide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading style guide: %w", err)
	}
	return ParseStyleGuide(string(data))
}

// ParseStyleGuide decodes a TOML style guide over the defaults.
func ParseStyleGuide(data string) (*StyleGuide, error) {
	g := DefaultStyleGuide()
	md, err := toml.Decode(data, g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyleGuide, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidStyleGuide, strings.Join(keys, ", "))
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks limits and types are usable.
func (g *StyleGuide) Validate() error {
	var errs []error
	if g.Limits.XChars <= 0 || g.Limits.LinkedInChars <= 0 {
		errs = append(errs, errors.New("platform character limits must be positive"))
	}
	if g.Limits.MetaDescriptionMax <= 0 || g.Limits.AltTextMax <= 0 {
		errs = append(errs, errors.New("meta description and alt text limits must be positive"))
	}
	if g.Creator.MaxLines <= 0 || g.Creator.MaxEmojis < 0 {
		errs = append(errs, errors.New("creator max_lines must be positive and max_emojis non-negative"))
	}
	for _, t := range g.Disclosure.Types {
		if _, err := content.ParseType(t); err != nil {
			errs = append(errs, fmt.Errorf("disclosure: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidStyleGuide, errors.Join(errs...))
	}
	return nil
}

// WithDisclosure returns a copy requiring text instead of the configured
// disclosure. An empty text returns g unchanged.
func (g *StyleGuide) WithDisclosure(text string) *StyleGuide {
	if text == "" {
		return g
	}
	cp := &StyleGuide{
		BannedPhrases:    g.BannedPhrases,
		ProhibitedClaims: g.ProhibitedClaims,
		Disclosure:       DisclosureRule{Text: text, Types: g.Disclosure.Types},
		Limits:           g.Limits,
		Creator:          g.Creator,
		DetectSecrets:    g.DetectSecrets,
	}
	return cp
}

func (g *StyleGuide) compile() {
	g.once.Do(func() {
		g.banned = wordPatterns(g.BannedPhrases)
		g.claims = wordPatterns(g.ProhibitedClaims)
		g.jargon = wordPatterns(g.Creator.Jargon)
		g.typesSet = make(map[content.Type]bool, len(g.Disclosure.Types))
		for _, t := range g.Disclosure.Types {
			g.typesSet[content.Type(t)] = true
		}
	})
}

// wordPatterns builds case-insensitive whole-phrase matchers. A boundary is
// only required on sides where the phrase starts or ends with a word
// character.
func wordPatterns(phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		expr := regexp.QuoteMeta(p)
		if isWordByte(p[0]) {
			expr = `\b` + expr
		}
		if isWordByte(p[len(p)-1]) {
			expr += `\b`
		}
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

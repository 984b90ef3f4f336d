package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
)

// ScriptedCompleter answers every agent deterministically from its
// structured input. It needs no network and backs offline runs, the demo
// command and tests. Its output satisfies the default style guide.
type ScriptedCompleter struct {
	// Disclosure is appended to every social variant when set.
	Disclosure string
}

// NewScriptedCompleter creates a scripted completer.
func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{}
}

// Complete answers req.
func (s *ScriptedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		out any
		err error
	)
	switch req.Agent {
	case Planner:
		out, err = s.plan(req.Input)
	case BlogWriter:
		out, err = s.blog(req.Input)
	case XDevWriter, XCreator, LinkedIn:
		out, err = s.post(req.Agent, req.Input)
	case ArtDirector:
		out, err = s.concepts(req.Input)
	case ImageMaker:
		out, err = s.image(req.Input)
	case Editor:
		out = reviewAnswer{Decisions: []Decision{}}
	default:
		return "", fmt.Errorf("%w: scripted completer has no answer for %s", ErrCompletion, req.Agent)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *ScriptedCompleter) plan(raw json.RawMessage) (*content.Brief, error) {
	var in PlanInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	text := strings.Join(strings.Fields(in.ProductInput), " ")
	name := productName(text)
	summary := firstSentence(text)
	keywords := []string{}
	for _, w := range strings.Fields(name) {
		if w = content.Slugify(w); w != "untitled" {
			keywords = append(keywords, w)
		}
	}
	return &content.Brief{
		ProductName:    name,
		Summary:        summary,
		Audience:       "builders shipping generative media",
		TargetSegments: []string{"developers", "creators", "technical decision makers"},
		KeyMessages: []string{
			summary,
			name + " is available today.",
		},
		Keywords:     keywords,
		Angles:       []string{"launch announcement", "first project walkthrough"},
		Tone:         "confident, concrete",
		CTA:          "Try " + name + " today.",
		CanonicalURL: in.CanonicalURL,
		VisualTheme:  "clean studio lighting, bold product color",
	}, nil
}

// firstSentence cuts text after the first ". ", "! " or "? ". Periods
// inside tokens such as "1.0" do not end a sentence.
func firstSentence(text string) string {
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				return text[:i+1]
			}
		}
	}
	return text
}

// productName takes the text before " is " or the first six words.
func productName(text string) string {
	if i := strings.Index(text, " is "); i > 0 {
		text = text[:i]
	}
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}
	if len(words) == 0 {
		return "Untitled"
	}
	return strings.Join(words, " ")
}

func decodeWriter(raw json.RawMessage) (*content.Brief, error) {
	in, err := decodeWriterInput(raw)
	if err != nil {
		return nil, err
	}
	return &in.Brief, nil
}

func decodeWriterInput(raw json.RawMessage) (*writerInput, error) {
	var in writerInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *ScriptedCompleter) blog(raw json.RawMessage) (*content.BlogArticle, error) {
	in, err := decodeWriterInput(raw)
	if err != nil {
		return nil, err
	}
	b := &in.Brief
	var body strings.Builder
	fmt.Fprintf(&body, "# Introducing %s\n\n%s\n\n## Why it matters\n\n", b.ProductName, b.Summary)
	for _, m := range b.KeyMessages {
		fmt.Fprintf(&body, "- %s\n", m)
	}
	fmt.Fprintf(&body, "\n## Get started\n\n%s\n", b.CTA)
	if len(in.Quickstarts) > 0 {
		body.WriteString("\n## Quickstart\n")
		for _, q := range in.Quickstarts {
			fmt.Fprintf(&body, "\n%s\n", q)
		}
	}
	if b.CanonicalURL != "" {
		fmt.Fprintf(&body, "\nRead more at %s.\n", b.CanonicalURL)
	}

	meta := []rune(b.Summary)
	if len(meta) > 155 {
		meta = meta[:155]
	}
	return &content.BlogArticle{
		Title:           "Introducing " + b.ProductName,
		Slug:            b.Slug(),
		MetaDescription: string(meta),
		BodyMarkdown:    body.String(),
		Tags:            b.Keywords,
	}, nil
}

func (s *ScriptedCompleter) post(agent Name, raw json.RawMessage) (*postAnswer, error) {
	b, err := decodeWriter(raw)
	if err != nil {
		return nil, err
	}
	tag := camel(b.Slug())
	var ans postAnswer
	switch agent {
	case XDevWriter:
		ans = postAnswer{
			Variants: []string{
				clip(b.ProductName+" is live. "+b.Summary+" Docs and API reference are up now.", 240),
				clip("Shipping today: "+b.ProductName+". One request, one result. Try the API.", 240),
			},
			Hashtags:     []string{tag, "DevTools"},
			LinkHandling: "inline",
		}
	case XCreator:
		ans = postAnswer{
			Variants: []string{
				"Meet " + b.ProductName + " ✨",
				"Your next story starts with " + b.ProductName,
			},
			Hashtags:     []string{tag, "Creators"},
			LinkHandling: "inline",
		}
	default:
		ans = postAnswer{
			Variants: []string{
				b.ProductName + " is here.\n\n" + b.Summary + "\n\n" + strings.Join(b.KeyMessages, "\n") + "\n\n" + b.CTA,
			},
			Hashtags:     []string{tag},
			LinkHandling: "first comment",
		}
	}
	if s.Disclosure != "" {
		for i, v := range ans.Variants {
			sep := " "
			if agent == LinkedIn {
				sep = "\n\n"
			}
			ans.Variants[i] = v + sep + s.Disclosure
		}
	}
	return &ans, nil
}

func (s *ScriptedCompleter) concepts(raw json.RawMessage) (*conceptsAnswer, error) {
	b, err := decodeWriter(raw)
	if err != nil {
		return nil, err
	}
	seed := int64(len(b.ProductName))
	theme := b.VisualTheme
	if theme == "" {
		theme = "clean studio lighting"
	}
	return &conceptsAnswer{Concepts: []content.ImageConcept{
		{
			Usage:       content.UsageBlogHero,
			Prompt:      fmt.Sprintf("Hero image for %s, %s, wide composition", b.ProductName, theme),
			AspectRatio: "16:9",
			StyleTags:   []string{"product", "hero"},
			Seed:        &seed,
		},
		{
			Usage:       content.UsageXCard,
			Prompt:      fmt.Sprintf("Square social card for %s, %s, centered subject", b.ProductName, theme),
			AspectRatio: "1:1",
			StyleTags:   []string{"social"},
			Seed:        &seed,
		},
	}}, nil
}

func (s *ScriptedCompleter) image(raw json.RawMessage) (*imageAnswer, error) {
	var in imageInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return &imageAnswer{
		Prompt:  in.Concept.Prompt,
		AltText: SuggestAltText(in.Concept.Prompt),
	}, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

// camel turns a slug into a hashtag word: "seedance-1-0" -> "Seedance10".
func camel(slug string) string {
	var sb strings.Builder
	for _, part := range strings.Split(slug, "-") {
		if part == "" {
			continue
		}
		r := []rune(part)
		sb.WriteString(strings.ToUpper(string(r[0])))
		sb.WriteString(string(r[1:]))
	}
	return sb.String()
}

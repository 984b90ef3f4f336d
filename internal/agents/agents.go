package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/logging"
)

// PlanInput is the planner's input.
type PlanInput struct {
	ProductInput string `json:"product_input"`
	CanonicalURL string `json:"canonical_url,omitempty"`
}

// Plan runs the planner and returns a validated brief.
func (r *Runner) Plan(ctx context.Context, in PlanInput) (*content.Brief, error) {
	return invoke(ctx, r, call[content.Brief]{
		agent: Planner,
		input: in,
		query: in.ProductInput,
		check: func(b *content.Brief) error {
			if b.CanonicalURL == "" {
				b.CanonicalURL = in.CanonicalURL
			}
			return b.Validate()
		},
	})
}

// writerInput is what every writer sees.
type writerInput struct {
	ContentType content.Type  `json:"content_type"`
	Brief       content.Brief `json:"brief"`
	Quickstarts []string      `json:"quickstarts,omitempty"`
}

func writerQuery(b *content.Brief) string {
	return b.ProductName + "\n" + b.Summary + "\n" + strings.Join(b.KeyMessages, "\n")
}

// quickstarts renders the code samples handed to the blog writer.
func (r *Runner) quickstarts(brief *content.Brief) ([]string, error) {
	spec, err := r.registry.Lookup(BlogWriter)
	if err != nil || !spec.Allows(ToolQuickstart) {
		return nil, err
	}
	task, model := QuickstartTask(brief), brief.Slug()
	var out []string
	for _, lang := range []string{"python", "javascript"} {
		snippet, err := CodeQuickstart(lang, task, model, r.baseURL)
		if err != nil {
			return nil, err
		}
		out = append(out, snippet)
	}
	return out, nil
}

// WriteBlog runs the blog writer. id becomes the article's content id.
func (r *Runner) WriteBlog(ctx context.Context, brief *content.Brief, id string) (*content.BlogArticle, error) {
	ctx = logging.WithContentID(ctx, id)
	samples, err := r.quickstarts(brief)
	if err != nil {
		return nil, err
	}
	return invoke(ctx, r, call[content.BlogArticle]{
		agent: BlogWriter,
		input: writerInput{ContentType: content.TypeBlog, Brief: *brief, Quickstarts: samples},
		query: writerQuery(brief),
		check: func(a *content.BlogArticle) error {
			a.ContentID = id
			if a.Slug == "" {
				a.Slug = brief.Slug()
			} else {
				a.Slug = content.Slugify(a.Slug)
			}
			return r.formatCheck(a)
		},
	})
}

type postAnswer struct {
	Variants     []string `json:"variants"`
	Hashtags     []string `json:"hashtags"`
	LinkHandling string   `json:"link_handling"`
}

func postIdentity(t content.Type) (content.Platform, content.Persona, error) {
	switch t {
	case content.TypeXDev:
		return content.PlatformX, content.PersonaDev, nil
	case content.TypeXCreator:
		return content.PlatformX, content.PersonaCreator, nil
	case content.TypeLinkedIn:
		return content.PlatformLinkedIn, content.PersonaLinkedIn, nil
	}
	return "", "", fmt.Errorf("%w: %s is not a social post type", content.ErrInvalidArtifact, t)
}

// WritePost runs the writer for a social post type. When the brief has a
// canonical URL the post carries a UTM-tagged, shortened link.
func (r *Runner) WritePost(ctx context.Context, t content.Type, brief *content.Brief, id string) (*content.SocialPost, error) {
	platform, persona, err := postIdentity(t)
	if err != nil {
		return nil, err
	}
	name, _ := WriterFor(t)
	ctx = logging.WithContentID(ctx, id)

	var post *content.SocialPost
	_, err = invoke(ctx, r, call[postAnswer]{
		agent: name,
		input: writerInput{ContentType: t, Brief: *brief},
		query: writerQuery(brief),
		check: func(a *postAnswer) error {
			post = &content.SocialPost{
				ContentID:    id,
				Platform:     platform,
				Persona:      persona,
				Variants:     trimAll(a.Variants),
				Hashtags:     normalizeHashtags(a.Hashtags),
				LinkHandling: a.LinkHandling,
			}
			return r.formatCheck(post)
		},
	})
	if err != nil {
		return nil, err
	}

	if brief.CanonicalURL != "" {
		spec, _ := r.registry.Lookup(name)
		source, medium := utmFor(t)
		link, err := BuildUTM(brief.CanonicalURL, source, medium, brief.Slug())
		if err != nil {
			return nil, err
		}
		if spec.Allows(ToolShortener) {
			link = r.shortener.Shorten(ctx, link)
		}
		post.Link = link
	}
	return post, nil
}

type conceptsAnswer struct {
	Concepts []content.ImageConcept `json:"concepts"`
}

// maxConcepts bounds the art director's proposals for one run.
const maxConcepts = 3

// DirectArt runs the art director and returns one to three concepts.
func (r *Runner) DirectArt(ctx context.Context, brief *content.Brief) ([]content.ImageConcept, error) {
	out, err := invoke(ctx, r, call[conceptsAnswer]{
		agent: ArtDirector,
		input: writerInput{ContentType: content.TypeImage, Brief: *brief},
		query: brief.ProductName + "\n" + brief.VisualTheme,
		check: func(a *conceptsAnswer) error {
			if len(a.Concepts) == 0 {
				return errors.New("no image concepts")
			}
			if len(a.Concepts) > maxConcepts {
				return fmt.Errorf("%d image concepts, at most %d", len(a.Concepts), maxConcepts)
			}
			for i := range a.Concepts {
				if err := a.Concepts[i].Validate(); err != nil {
					return fmt.Errorf("concept %d: %w", i+1, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Concepts, nil
}

type imageInput struct {
	ProductName string               `json:"product_name"`
	Concept     content.ImageConcept `json:"concept"`
}

type imageAnswer struct {
	Prompt  string `json:"prompt"`
	AltText string `json:"alt_text"`
}

// MakeImage refines a concept and renders it through the image service.
// The render call is made once; a failure is returned as ErrImageService.
func (r *Runner) MakeImage(ctx context.Context, brief *content.Brief, concept content.ImageConcept, id string) (*content.ImageAsset, error) {
	if err := concept.Validate(); err != nil {
		return nil, err
	}
	spec, err := r.registry.Lookup(ImageMaker)
	if err != nil {
		return nil, err
	}
	if !spec.Allows(ToolImageService) {
		return nil, fmt.Errorf("%w: %s cannot use %s", ErrToolNotAllowed, ImageMaker, ToolImageService)
	}
	ctx = logging.WithContentID(ctx, id)

	ans, err := invoke(ctx, r, call[imageAnswer]{
		agent: ImageMaker,
		input: imageInput{ProductName: brief.ProductName, Concept: concept},
		check: func(a *imageAnswer) error {
			a.Prompt = strings.TrimSpace(a.Prompt)
			if a.Prompt == "" {
				a.Prompt = concept.Prompt
			}
			a.AltText = strings.TrimSpace(a.AltText)
			if a.AltText == "" {
				a.AltText = SuggestAltText(a.Prompt)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	dims, _ := content.DimensionsFor(concept.AspectRatio)
	rendered, err := r.images.Generate(ctx, ImageRequest{
		Prompt:    ans.Prompt,
		Width:     dims.Width,
		Height:    dims.Height,
		Seed:      concept.Seed,
		StyleTags: concept.StyleTags,
	})
	if err != nil {
		if !errors.Is(err, ErrImageService) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", ErrImageService, err)
		}
		return nil, err
	}

	asset := &content.ImageAsset{
		ContentID:    id,
		ImageConcept: concept,
		URL:          rendered.URL,
		AltText:      ans.AltText,
		Width:        rendered.Width,
		Height:       rendered.Height,
	}
	asset.Prompt = ans.Prompt
	if err := r.formatCheck(asset); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStructuralOutput, ImageMaker, err)
	}
	return asset, nil
}

// Action is an editorial decision.
type Action string

const (
	ActionAccept Action = "accept"
	ActionRevise Action = "revise"
	ActionReject Action = "reject"
)

// Decision is the editor's verdict on one artifact.
type Decision struct {
	ContentID string          `json:"content_id"`
	Action    Action          `json:"action"`
	Reason    string          `json:"reason,omitempty"`
	Revised   json.RawMessage `json:"revised,omitempty"`
}

type reviewAnswer struct {
	Decisions []Decision `json:"decisions"`
}

// Rejection records an artifact the editor dropped.
type Rejection struct {
	ContentID    string
	ArtifactType content.Type
	Reason       string
}

// Review is the outcome of the editorial pass.
type Review struct {
	// Kept holds accepted and revised artifacts in input order.
	Kept []content.Artifact

	Rejected []Rejection

	// Revised lists the content ids the editor rewrote.
	Revised []string
}

type reviewItem struct {
	ContentID   string           `json:"content_id"`
	ContentType content.Type     `json:"content_type"`
	Artifact    content.Artifact `json:"artifact"`
}

type editorInput struct {
	Brief     content.Brief `json:"brief"`
	Artifacts []reviewItem  `json:"artifacts"`
}

// Edit runs the editor over the surviving artifacts. An artifact without
// a decision is accepted. Revisions keep the original content id and type
// and must pass the same contract as the writer's output.
func (r *Runner) Edit(ctx context.Context, brief *content.Brief, artifacts []content.Artifact) (*Review, error) {
	byID := make(map[string]content.Artifact, len(artifacts))
	items := make([]reviewItem, 0, len(artifacts))
	for _, a := range artifacts {
		byID[a.ID()] = a
		items = append(items, reviewItem{ContentID: a.ID(), ContentType: a.Kind(), Artifact: a})
	}

	revisions := make(map[string]content.Artifact)
	ans, err := invoke(ctx, r, call[reviewAnswer]{
		agent: Editor,
		input: editorInput{Brief: *brief, Artifacts: items},
		query: writerQuery(brief),
		check: func(a *reviewAnswer) error {
			clear(revisions)
			seen := make(map[string]bool, len(a.Decisions))
			for _, d := range a.Decisions {
				orig, ok := byID[d.ContentID]
				if !ok {
					return fmt.Errorf("decision for unknown content_id %q", d.ContentID)
				}
				if seen[d.ContentID] {
					return fmt.Errorf("two decisions for %s", d.ContentID)
				}
				seen[d.ContentID] = true
				switch d.Action {
				case ActionAccept:
				case ActionReject:
					if strings.TrimSpace(d.Reason) == "" {
						return fmt.Errorf("rejection of %s has no reason", d.ContentID)
					}
				case ActionRevise:
					rev, err := revise(orig, d.Revised)
					if err != nil {
						return fmt.Errorf("revision of %s: %w", d.ContentID, err)
					}
					if err := r.formatCheck(rev); err != nil {
						return fmt.Errorf("revision of %s: %w", d.ContentID, err)
					}
					revisions[d.ContentID] = rev
				default:
					return fmt.Errorf("unknown action %q for %s", d.Action, d.ContentID)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	decisions := make(map[string]Decision, len(ans.Decisions))
	for _, d := range ans.Decisions {
		decisions[d.ContentID] = d
	}
	review := &Review{}
	for _, a := range artifacts {
		d := decisions[a.ID()]
		switch d.Action {
		case ActionReject:
			review.Rejected = append(review.Rejected, Rejection{ContentID: a.ID(), ArtifactType: a.Kind(), Reason: d.Reason})
		case ActionRevise:
			review.Kept = append(review.Kept, revisions[a.ID()])
			review.Revised = append(review.Revised, a.ID())
		default:
			review.Kept = append(review.Kept, a)
		}
	}
	r.logger.Info(ctx, "editorial pass complete",
		zap.Int("kept", len(review.Kept)),
		zap.Int("revised", len(review.Revised)),
		zap.Int("rejected", len(review.Rejected)),
	)
	return review, nil
}

// revise applies a revision over a copy of the original. Identity fields
// are restored afterwards so the editor cannot move an artifact.
func revise(orig content.Artifact, raw json.RawMessage) (content.Artifact, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("revise without a revised artifact")
	}
	switch v := orig.(type) {
	case *content.BlogArticle:
		rev := *v
		rev.Tags = append([]string(nil), v.Tags...)
		if err := json.Unmarshal(raw, &rev); err != nil {
			return nil, err
		}
		rev.ContentID = v.ContentID
		return &rev, nil
	case *content.SocialPost:
		rev := *v
		rev.Variants = append([]string(nil), v.Variants...)
		rev.Hashtags = append([]string(nil), v.Hashtags...)
		if err := json.Unmarshal(raw, &rev); err != nil {
			return nil, err
		}
		rev.ContentID, rev.Platform, rev.Persona, rev.Link = v.ContentID, v.Platform, v.Persona, v.Link
		return &rev, nil
	case *content.ImageAsset:
		rev := *v
		if err := json.Unmarshal(raw, &rev); err != nil {
			return nil, err
		}
		// Only descriptive fields are editable on a rendered image.
		rev.ContentID, rev.ImageConcept, rev.URL, rev.Width, rev.Height = v.ContentID, v.ImageConcept, v.URL, v.Width, v.Height
		return &rev, nil
	}
	return nil, fmt.Errorf("%w: unsupported artifact %T", content.ErrInvalidArtifact, orig)
}

func trimAll(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		out = append(out, strings.TrimSpace(x))
	}
	return out
}

func normalizeHashtags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		out = append(out, "#"+t)
	}
	return out
}

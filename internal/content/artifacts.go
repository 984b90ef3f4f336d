package content

import (
	"fmt"
	"strconv"
	"strings"
)

// Artifact is one generated content item. The set of implementations is
// closed: *BlogArticle, *SocialPost and *ImageAsset.
type Artifact interface {
	// ID returns the content id.
	ID() string
	// Kind returns the artifact type.
	Kind() Type
	// Text returns the canonical text used for embedding and checks.
	Text() string
	// Metadata returns flat vector-store metadata for the artifact.
	Metadata() map[string]string
	// Validate checks structural completeness.
	Validate() error

	artifact()
}

// BlogArticle is a long-form post in Markdown.
type BlogArticle struct {
	ContentID       string   `json:"content_id"`
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	MetaDescription string   `json:"meta_description"`
	BodyMarkdown    string   `json:"body_markdown"`
	Tags            []string `json:"tags,omitempty"`
}

func (b *BlogArticle) ID() string { return b.ContentID }
func (b *BlogArticle) Kind() Type { return TypeBlog }
func (b *BlogArticle) artifact()  {}
func (b *BlogArticle) Text() string {
	return b.Title + "\n\n" + b.MetaDescription + "\n\n" + b.BodyMarkdown
}

func (b *BlogArticle) Metadata() map[string]string {
	return map[string]string{
		"content_type": string(TypeBlog),
		"title":        b.Title,
		"slug":         b.Slug,
		"tags":         strings.Join(b.Tags, ","),
	}
}

func (b *BlogArticle) Validate() error {
	var missing []string
	if strings.TrimSpace(b.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(b.Slug) == "" {
		missing = append(missing, "slug")
	}
	if strings.TrimSpace(b.MetaDescription) == "" {
		missing = append(missing, "meta_description")
	}
	if strings.TrimSpace(b.BodyMarkdown) == "" {
		missing = append(missing, "body_markdown")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: blog missing %s", ErrInvalidArtifact, strings.Join(missing, ", "))
	}
	return nil
}

// SocialPost is a set of alternative copies for one platform and persona.
type SocialPost struct {
	ContentID string   `json:"content_id"`
	Platform  Platform `json:"platform"`
	Persona   Persona  `json:"persona"`
	Variants  []string `json:"variants"`
	Hashtags  []string `json:"hashtags,omitempty"`

	// LinkHandling describes link placement, e.g. "inline" or "first comment".
	LinkHandling string `json:"link_handling,omitempty"`

	// Link is the tracked URL attached to the post, if any.
	Link string `json:"link,omitempty"`

	// AssetRefs are content ids or URLs of images to attach.
	AssetRefs []string `json:"asset_refs,omitempty"`
}

func (s *SocialPost) ID() string { return s.ContentID }
func (s *SocialPost) artifact()  {}

// Kind maps platform and persona to an artifact type.
func (s *SocialPost) Kind() Type {
	switch {
	case s.Platform == PlatformLinkedIn:
		return TypeLinkedIn
	case s.Persona == PersonaCreator:
		return TypeXCreator
	default:
		return TypeXDev
	}
}

func (s *SocialPost) Text() string {
	return strings.Join(s.Variants, "\n\n")
}

func (s *SocialPost) Metadata() map[string]string {
	return map[string]string{
		"content_type": string(s.Kind()),
		"platform":     string(s.Platform),
		"persona":      string(s.Persona),
		"hashtags":     strings.Join(s.Hashtags, ","),
	}
}

func (s *SocialPost) Validate() error {
	switch s.Platform {
	case PlatformX:
		if s.Persona != PersonaDev && s.Persona != PersonaCreator {
			return fmt.Errorf("%w: x post persona %q", ErrInvalidArtifact, s.Persona)
		}
	case PlatformLinkedIn:
		if s.Persona != PersonaLinkedIn {
			return fmt.Errorf("%w: linkedin post persona %q", ErrInvalidArtifact, s.Persona)
		}
	default:
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidArtifact, s.Platform)
	}
	if len(s.Variants) == 0 {
		return fmt.Errorf("%w: %s post has no variants", ErrInvalidArtifact, s.Kind())
	}
	for i, v := range s.Variants {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s variant %d is empty", ErrInvalidArtifact, s.Kind(), i+1)
		}
	}
	return nil
}

// ImageConcept is the art director's proposal for one image.
type ImageConcept struct {
	Usage       Usage    `json:"usage"`
	Prompt      string   `json:"prompt"`
	AspectRatio string   `json:"aspect_ratio"`
	StyleTags   []string `json:"style_tags,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// Validate checks the concept can be rendered.
func (c *ImageConcept) Validate() error {
	if !validUsage(c.Usage) {
		return fmt.Errorf("%w: image usage %q", ErrInvalidArtifact, c.Usage)
	}
	if strings.TrimSpace(c.Prompt) == "" {
		return fmt.Errorf("%w: image prompt is empty", ErrInvalidArtifact)
	}
	if _, ok := DimensionsFor(c.AspectRatio); !ok {
		return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidArtifact, c.AspectRatio)
	}
	return nil
}

// ImageAsset is a rendered image.
type ImageAsset struct {
	ContentID string `json:"content_id"`
	ImageConcept
	URL     string `json:"url"`
	AltText string `json:"alt_text"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func (a *ImageAsset) ID() string   { return a.ContentID }
func (a *ImageAsset) Kind() Type   { return TypeImage }
func (a *ImageAsset) artifact()    {}
func (a *ImageAsset) Text() string { return a.Prompt + "\n" + a.AltText }

func (a *ImageAsset) Metadata() map[string]string {
	md := map[string]string{
		"content_type": string(TypeImage),
		"usage":        string(a.Usage),
		"aspect_ratio": a.AspectRatio,
		"url":          a.URL,
		"style_tags":   strings.Join(a.StyleTags, ","),
	}
	if a.Seed != nil {
		md["seed"] = strconv.FormatInt(*a.Seed, 10)
	}
	return md
}

func (a *ImageAsset) Validate() error {
	if err := a.ImageConcept.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(a.URL) == "" {
		return fmt.Errorf("%w: image has no url", ErrInvalidArtifact)
	}
	if strings.TrimSpace(a.AltText) == "" {
		return fmt.Errorf("%w: image has no alt text", ErrInvalidArtifact)
	}
	return nil
}

package content

import "time"

// Diagnostic records a non-fatal failure inside a run.
type Diagnostic struct {
	Kind         string `json:"kind"`
	Stage        string `json:"stage"`
	ArtifactType Type   `json:"artifact_type,omitempty"`
	ContentID    string `json:"content_id,omitempty"`
	Message      string `json:"message"`
}

// DuplicateNotice annotates a run whose input resembles a past campaign.
type DuplicateNotice struct {
	NearestID  string  `json:"nearest_id"`
	Similarity float32 `json:"similarity"`
	Threshold  float32 `json:"threshold"`
}

// PublishResult is the reported outcome of the publish hook.
type PublishResult struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// Package is the accepted output of one run.
type Package struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Brief     Brief     `json:"brief"`

	Blog     *BlogArticle `json:"blog,omitempty"`
	XDev     *SocialPost  `json:"x_posts_dev,omitempty"`
	XCreator *SocialPost  `json:"x_posts_creator,omitempty"`
	LinkedIn *SocialPost  `json:"linkedin_posts,omitempty"`
	Images   []ImageAsset `json:"images"`

	Duplicate   *DuplicateNotice `json:"duplicate,omitempty"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
	Publish     *PublishResult   `json:"publish,omitempty"`

	// WriterFailures counts text writers that produced nothing.
	WriterFailures int `json:"writer_failures"`
}

// Add places an artifact into its slot.
func (p *Package) Add(a Artifact) {
	switch v := a.(type) {
	case *BlogArticle:
		p.Blog = v
	case *SocialPost:
		switch v.Kind() {
		case TypeXDev:
			p.XDev = v
		case TypeXCreator:
			p.XCreator = v
		case TypeLinkedIn:
			p.LinkedIn = v
		}
	case *ImageAsset:
		p.Images = append(p.Images, *v)
	}
}

// Artifacts lists the package contents in a stable order.
func (p *Package) Artifacts() []Artifact {
	var out []Artifact
	if p.Blog != nil {
		out = append(out, p.Blog)
	}
	for _, s := range []*SocialPost{p.XDev, p.XCreator, p.LinkedIn} {
		if s != nil {
			out = append(out, s)
		}
	}
	for i := range p.Images {
		out = append(out, &p.Images[i])
	}
	return out
}

// Len returns the number of artifacts.
func (p *Package) Len() int { return len(p.Artifacts()) }

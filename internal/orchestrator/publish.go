package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
)

// Publisher schedules a finished package for publication. It is called at
// most once per run and its failure never fails the run.
type Publisher interface {
	Publish(ctx context.Context, pkg *content.Package, at time.Time) error
}

// ErrNothingToPublish is returned when a package has no publishable text.
var ErrNothingToPublish = errors.New("package has nothing to publish")

// WebhookPublisher posts the package to a CMS webhook.
type WebhookPublisher struct {
	url    string
	client *http.Client
}

// NewWebhookPublisher creates a publisher for url.
func NewWebhookPublisher(url string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookPublisher{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookPost struct {
	ContentID string   `json:"content_id"`
	Platform  string   `json:"platform"`
	Persona   string   `json:"persona"`
	Text      string   `json:"text"`
	Hashtags  []string `json:"hashtags,omitempty"`
	Link      string   `json:"link,omitempty"`
}

type webhookBody struct {
	RunID           string        `json:"run_id"`
	ScheduledFor    time.Time     `json:"scheduled_for"`
	Slug            string        `json:"slug,omitempty"`
	Title           string        `json:"title,omitempty"`
	Markdown        string        `json:"markdown,omitempty"`
	MetaDescription string        `json:"meta_description,omitempty"`
	HeroImage       string        `json:"hero_image,omitempty"`
	Posts           []webhookPost `json:"posts,omitempty"`
}

// Publish sends one request. It is not retried.
func (p *WebhookPublisher) Publish(ctx context.Context, pkg *content.Package, at time.Time) error {
	body := webhookBody{RunID: pkg.RunID, ScheduledFor: at.UTC()}
	if b := pkg.Blog; b != nil {
		body.Slug, body.Title, body.Markdown, body.MetaDescription = b.Slug, b.Title, b.BodyMarkdown, b.MetaDescription
	}
	for _, img := range pkg.Images {
		if img.Usage == content.UsageBlogHero {
			body.HeroImage = img.URL
			break
		}
	}
	for _, s := range []*content.SocialPost{pkg.XDev, pkg.XCreator, pkg.LinkedIn} {
		if s == nil || len(s.Variants) == 0 {
			continue
		}
		body.Posts = append(body.Posts, webhookPost{
			ContentID: s.ContentID,
			Platform:  string(s.Platform),
			Persona:   string(s.Persona),
			Text:      s.Variants[0],
			Hashtags:  s.Hashtags,
			Link:      s.Link,
		})
	}
	if body.Markdown == "" && len(body.Posts) == 0 {
		return ErrNothingToPublish
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: publish webhook: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: publish webhook returned %d: %s", ErrExternalService, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

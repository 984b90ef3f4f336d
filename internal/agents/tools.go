package agents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
)

// BuildUTM adds utm_source, utm_medium and utm_campaign to rawURL, keeping
// its other query parameters.
func BuildUTM(rawURL, source, medium, campaign string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing link: %w", err)
	}
	q := u.Query()
	q.Set("utm_source", source)
	q.Set("utm_medium", medium)
	q.Set("utm_campaign", campaign)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// altTextLen is the rune length of suggested alt text.
const altTextLen = 120

// SuggestAltText derives alt text from an image prompt.
func SuggestAltText(prompt string) string {
	prompt = strings.Join(strings.Fields(prompt), " ")
	r := []rune(prompt)
	if len(r) > altTextLen {
		r = r[:altTextLen]
	}
	return string(r)
}

// Shortener shortens links. Implementations return the original link on
// any failure; shortening is never worth failing a post over.
type Shortener interface {
	Shorten(ctx context.Context, link string) string
}

// PassthroughShortener returns links unchanged.
type PassthroughShortener struct{}

// Shorten returns link.
func (PassthroughShortener) Shorten(_ context.Context, link string) string { return link }

// BitlyShortener shortens through the Bitly v4 API.
type BitlyShortener struct {
	token    string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewBitlyShortener creates a shortener. An empty token yields a
// PassthroughShortener.
func NewBitlyShortener(token string, timeout time.Duration, logger *zap.Logger) Shortener {
	if token == "" {
		return PassthroughShortener{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BitlyShortener{
		token:    token,
		endpoint: "https://api-ssl.bitly.com/v4/shorten",
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Shorten returns the short link, or link itself on failure.
func (b *BitlyShortener) Shorten(ctx context.Context, link string) string {
	short, err := b.shorten(ctx, link)
	if err != nil {
		b.logger.Warn("link shortening failed, using long link", zap.Error(err))
		return link
	}
	return short
}

func (b *BitlyShortener) shorten(ctx context.Context, link string) (string, error) {
	body, err := json.Marshal(map[string]string{"long_url": link})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("shortener returned %d", resp.StatusCode)
	}
	var out struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding shortener response: %w", err)
	}
	if out.Link == "" {
		return "", errors.New("shortener returned no link")
	}
	return out.Link, nil
}

// ImageRequest asks the text-to-image service for one image.
type ImageRequest struct {
	Prompt    string   `json:"prompt"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Seed      *int64   `json:"seed,omitempty"`
	StyleTags []string `json:"style_tags,omitempty"`
}

// ImageResult is a rendered image.
type ImageResult struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageGenerator is the text-to-image service.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// ErrImageService is returned when the image service fails.
var ErrImageService = errors.New("image service failed")

// HTTPImageGenerator posts to a text-to-image HTTP endpoint.
type HTTPImageGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPImageGenerator creates a generator for endpoint.
func NewHTTPImageGenerator(endpoint, apiKey string, timeout time.Duration) *HTTPImageGenerator {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPImageGenerator{endpoint: endpoint, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

// Generate renders one image. The call is not retried.
func (g *HTTPImageGenerator) Generate(ctx context.Context, req ImageRequest) (ImageResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ImageResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return ImageResult{}, fmt.Errorf("%w: %v", ErrImageService, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return ImageResult{}, fmt.Errorf("%w: %v", ErrImageService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ImageResult{}, fmt.Errorf("%w: status %d: %s", ErrImageService, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	// Accept either a flat result or an OpenAI-style data array.
	var out struct {
		ImageResult
		Data []ImageResult `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return ImageResult{}, fmt.Errorf("%w: decoding response: %v", ErrImageService, err)
	}
	res := out.ImageResult
	if res.URL == "" && len(out.Data) > 0 {
		res = out.Data[0]
	}
	if res.URL == "" {
		return ImageResult{}, fmt.Errorf("%w: response has no url", ErrImageService)
	}
	if res.Width == 0 || res.Height == 0 {
		res.Width, res.Height = req.Width, req.Height
	}
	return res, nil
}

// PlaceholderImageGenerator returns deterministic URLs without rendering.
// It backs offline runs.
type PlaceholderImageGenerator struct {
	baseURL string
}

// NewPlaceholderImageGenerator creates a placeholder generator.
func NewPlaceholderImageGenerator(baseURL string) *PlaceholderImageGenerator {
	if baseURL == "" {
		baseURL = "https://cdn.example.com/images"
	}
	return &PlaceholderImageGenerator{baseURL: strings.TrimRight(baseURL, "/")}
}

// Generate derives the URL from a hash of the request.
func (g *PlaceholderImageGenerator) Generate(ctx context.Context, req ImageRequest) (ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return ImageResult{}, err
	}
	seed := int64(0)
	if req.Seed != nil {
		seed = *req.Seed
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%dx%d|%d", req.Prompt, req.Width, req.Height, seed)))
	return ImageResult{
		URL:    fmt.Sprintf("%s/%s.png", g.baseURL, hex.EncodeToString(sum[:8])),
		Width:  req.Width,
		Height: req.Height,
	}, nil
}

// utmFor returns source and medium for an artifact type.
func utmFor(t content.Type) (source, medium string) {
	switch t {
	case content.TypeLinkedIn:
		return "linkedin", "social"
	case content.TypeBlog:
		return "blog", "blog"
	default:
		return "x", "social"
	}
}

// Quickstart tasks.
const (
	TaskTextToImage = "text-to-image"
	TaskTextToVideo = "text-to-video"
)

var quickstartPython = "```python\n" + `import os, httpx

BASE_URL = os.getenv("BASE_URL", "%[1]s")
API_KEY = os.environ["API_KEY"]

payload = {"model": "%[2]s", "prompt": "%[4]s", %[5]s}
headers = {"Authorization": f"Bearer {API_KEY}"}

with httpx.Client(timeout=%[6]d) as client:
    r = client.post(f"{BASE_URL}%[3]s", json=payload, headers=headers)
    r.raise_for_status()
    print(r.json())
` + "```"

var quickstartJS = "```javascript\n" + `const BASE_URL = process.env["BASE_URL"] || "%[1]s";
const API_KEY = process.env["API_KEY"];

const res = await fetch(` + "`${BASE_URL}%[3]s`" + `, {
  method: "POST",
  headers: { "Authorization": ` + "`Bearer ${API_KEY}`" + `, "Content-Type": "application/json" },
  body: JSON.stringify({ model: "%[2]s", prompt: "%[4]s", %[5]s }),
});
console.log(await res.json());
` + "```"

// CodeQuickstart returns a fenced Markdown snippet calling the generation
// API for task in lang ("python" or "javascript"). Any task other than
// text-to-image targets the video endpoint.
func CodeQuickstart(lang, task, model, baseURL string) (string, error) {
	if model == "" {
		model = "your-model-id"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return "", errors.New("quickstart: base URL is required")
	}

	path, prompt, pyExtra, jsExtra, timeout := "/v1/videos/generations",
		"Cinematic timelapse of clouds rolling over mountains",
		`"duration": 5`, `duration: 5`, 300
	if task == TaskTextToImage {
		path, prompt, pyExtra, jsExtra, timeout = "/v1/images/generations",
			"Studio-lit product on matte backdrop, soft gradients",
			`"size": "1024x1024"`, `size: "1024x1024"`, 60
	}

	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "python", "py":
		return fmt.Sprintf(quickstartPython, baseURL, model, path, prompt, pyExtra, timeout), nil
	case "javascript", "js":
		return fmt.Sprintf(quickstartJS, baseURL, model, path, prompt, jsExtra), nil
	}
	return "", fmt.Errorf("quickstart: unsupported language %q", lang)
}

// QuickstartTask picks the generation task a brief is about.
func QuickstartTask(b *content.Brief) string {
	text := strings.ToLower(b.ProductName + " " + b.Summary + " " + strings.Join(b.Keywords, " "))
	if strings.Contains(text, "image") && !strings.Contains(text, "video") {
		return TaskTextToImage
	}
	return TaskTextToVideo
}

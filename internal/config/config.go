package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the complete contentfactory configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	LLM           LLMConfig           `koanf:"llm"`
	Images        ImagesConfig        `koanf:"images"`
	Controller    ControllerConfig    `koanf:"controller"`
	Learner       LearnerConfig       `koanf:"learner"`
	Guardrails    GuardrailsConfig    `koanf:"guardrails"`
	NATS          NATSConfig          `koanf:"nats"`
	Publish       PublishConfig       `koanf:"publish"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string        `koanf:"provider"`
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded store. An empty Path keeps everything in memory.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the remote Qdrant store.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "hash" (deterministic, offline), "fastembed" or "openai".
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	Dimension int    `koanf:"dimension"`
	CacheDir  string `koanf:"cache_dir"`
	CacheSize int    `koanf:"cache_size"`
}

// LLMConfig configures the completion service used by every agent.
type LLMConfig struct {
	// Provider is "openai", "anthropic", "ollama" or "scripted".
	Provider  string        `koanf:"provider"`
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	APIKey    Secret        `koanf:"api_key"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
	Timeout   time.Duration `koanf:"timeout"`
}

// ImagesConfig configures the text-to-image service.
type ImagesConfig struct {
	// Endpoint is the HTTP generation endpoint. Empty selects the placeholder generator.
	Endpoint string        `koanf:"endpoint"`
	APIKey   Secret        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ControllerConfig tunes the orchestration run.
type ControllerConfig struct {
	DuplicateThreshold float64       `koanf:"duplicate_threshold"`
	DuplicatePolicy    string        `koanf:"duplicate_policy"`
	AgentTimeout       time.Duration `koanf:"agent_timeout"`
	ImageConcurrency   int           `koanf:"image_concurrency"`
	RetrievalK         int           `koanf:"retrieval_k"`
	MinSimilarity      float64       `koanf:"min_similarity"`
	StyleMinScore      float64       `koanf:"style_min_score"`
	QuickstartBaseURL  string        `koanf:"quickstart_base_url"`
	RetrievalRetries   int           `koanf:"retrieval_retries"`
	RetrievalBackoff   time.Duration `koanf:"retrieval_backoff"`
}

// LearnerConfig tunes performance scoring and promotion.
type LearnerConfig struct {
	PromotionThreshold float64       `koanf:"promotion_threshold"`
	RetentionDays      int           `koanf:"retention_days"`
	SweepInterval      time.Duration `koanf:"sweep_interval"`
}

// GuardrailsConfig points at the style guide.
type GuardrailsConfig struct {
	// StyleGuidePath is a TOML style guide. Empty uses the built-in defaults.
	StyleGuidePath string `koanf:"style_guide_path"`
	// Watch reloads the style guide when the file changes.
	Watch bool `koanf:"watch"`
	// Disclosure, when set, overrides the style guide's required disclosure.
	Disclosure string `koanf:"disclosure"`
}

// NATSConfig configures metric ingestion and run events. An empty URL disables both.
type NATSConfig struct {
	URL            string `koanf:"url"`
	MetricsSubject string `koanf:"metrics_subject"`
	EventsSubject  string `koanf:"events_subject"`
}

// PublishConfig configures the scheduled publish hook and link shortener.
type PublishConfig struct {
	WebhookURL     string        `koanf:"webhook_url"`
	ShortenerToken Secret        `koanf:"shortener_token"`
	Timeout        time.Duration `koanf:"timeout"`
}

// Duplicate policies.
const (
	PolicyBlock = "block"
	PolicyWarn  = "warn"
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be in 1..65535, got %d", c.Server.Port))
	}

	switch c.VectorStore.Provider {
	case "chromem":
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			errs = append(errs, errors.New("vectorstore.qdrant.host is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vectorstore.provider %q", c.VectorStore.Provider))
	}

	switch c.Embeddings.Provider {
	case "hash", "fastembed":
	case "openai":
		if !c.Embeddings.APIKey.IsSet() && c.Embeddings.BaseURL == "" {
			errs = append(errs, errors.New("embeddings.api_key or embeddings.base_url is required for openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings.provider %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension <= 0 {
		errs = append(errs, errors.New("embeddings.dimension must be positive"))
	}

	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama", "scripted":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.RateLimit < 0 {
		errs = append(errs, errors.New("llm.rate_limit cannot be negative"))
	}

	cc := c.Controller
	if cc.DuplicateThreshold <= 0 || cc.DuplicateThreshold > 1 {
		errs = append(errs, fmt.Errorf("controller.duplicate_threshold must be in (0, 1], got %v", cc.DuplicateThreshold))
	}
	if cc.DuplicatePolicy != PolicyBlock && cc.DuplicatePolicy != PolicyWarn {
		errs = append(errs, fmt.Errorf("controller.duplicate_policy must be %q or %q, got %q", PolicyBlock, PolicyWarn, cc.DuplicatePolicy))
	}
	if cc.MinSimilarity < 0 || cc.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("controller.min_similarity must be in [0, 1], got %v", cc.MinSimilarity))
	}
	if cc.StyleMinScore < 0 || cc.StyleMinScore > 1 {
		errs = append(errs, fmt.Errorf("controller.style_min_score must be in [0, 1], got %v", cc.StyleMinScore))
	}
	if cc.ImageConcurrency < 1 {
		errs = append(errs, errors.New("controller.image_concurrency must be at least 1"))
	}

	if c.Learner.PromotionThreshold < 0 || c.Learner.PromotionThreshold > 1 {
		errs = append(errs, fmt.Errorf("learner.promotion_threshold must be in [0, 1], got %v", c.Learner.PromotionThreshold))
	}
	if c.Learner.RetentionDays < 1 {
		errs = append(errs, errors.New("learner.retention_days must be at least 1"))
	}

	if c.Publish.WebhookURL != "" {
		if u, err := url.Parse(c.Publish.WebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("publish.webhook_url is not an absolute URL: %q", c.Publish.WebhookURL))
		}
	}

	return errors.Join(errs...)
}

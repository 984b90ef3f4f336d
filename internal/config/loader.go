// Package config provides configuration loading for contentfactory.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is stripped from environment overrides.
	EnvPrefix = "CONTENTFACTORY_"
)

// LoadWithFile loads configuration from a YAML file, then applies environment overrides.
//
// Precedence (highest to lowest):
//  1. Environment variables (CONTENTFACTORY_CONTROLLER_DUPLICATE_POLICY, ...)
//  2. YAML config file (~/.config/contentfactory/config.yaml)
//  3. Defaults
//
// The file must live in ~/.config/contentfactory/ or /etc/contentfactory/, must be
// 0600 or 0400, and must not exceed 1MB.
//
// Environment variables are split on the first underscore after the prefix:
//
//	CONTENTFACTORY_CONTROLLER_DUPLICATE_THRESHOLD -> controller.duplicate_threshold
//	CONTENTFACTORY_LEARNER_RETENTION_DAYS         -> learner.retention_days
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate through the open descriptor so the checked file is the read file.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps CONTENTFACTORY_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// DefaultConfigDir returns ~/.config/contentfactory.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "contentfactory"), nil
}

// EnsureConfigDir creates the config directory with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := DefaultConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath checks that path resolves into an allowed directory.
// It runs whether or not the file exists.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Missing files are allowed; validate the unresolved path.
		resolvedPath = absPath
	}

	userDir, err := DefaultConfigDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{userDir, "/etc/contentfactory"} {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/contentfactory/ or /etc/contentfactory/")
}

// validateConfigFileProperties checks permissions and size of an opened file.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8088
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// Observability defaults
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "contentfactory"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}

	// VectorStore defaults (chromem is embedded, no external deps)
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}

	// Embeddings defaults
	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "hash"
	}
	if cfg.Embeddings.Model == "" {
		switch cfg.Embeddings.Provider {
		case "openai":
			cfg.Embeddings.Model = "text-embedding-3-small"
		default:
			cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
		}
	}
	if cfg.Embeddings.Dimension == 0 {
		switch cfg.Embeddings.Provider {
		case "openai":
			cfg.Embeddings.Dimension = 1536
		default:
			cfg.Embeddings.Dimension = 384 // bge-small-en-v1.5 dimensions
		}
	}
	if cfg.Embeddings.CacheSize == 0 {
		cfg.Embeddings.CacheSize = 1024
	}

	// LLM defaults
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "scripted"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.RateLimit == 0 {
		cfg.LLM.RateLimit = 2
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 4
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	// Images defaults
	if cfg.Images.BaseURL == "" {
		cfg.Images.BaseURL = "https://cdn.example.com/images"
	}
	if cfg.Images.Timeout == 0 {
		cfg.Images.Timeout = 90 * time.Second
	}

	// Controller defaults
	if cfg.Controller.DuplicateThreshold == 0 {
		cfg.Controller.DuplicateThreshold = 0.95
	}
	if cfg.Controller.DuplicatePolicy == "" {
		cfg.Controller.DuplicatePolicy = PolicyWarn
	}
	if cfg.Controller.AgentTimeout == 0 {
		cfg.Controller.AgentTimeout = 90 * time.Second
	}
	if cfg.Controller.ImageConcurrency == 0 {
		cfg.Controller.ImageConcurrency = 3
	}
	if cfg.Controller.RetrievalK == 0 {
		cfg.Controller.RetrievalK = 5
	}
	if cfg.Controller.MinSimilarity == 0 {
		cfg.Controller.MinSimilarity = 0.3
	}
	if cfg.Controller.StyleMinScore == 0 {
		cfg.Controller.StyleMinScore = 0.7
	}
	if cfg.Controller.QuickstartBaseURL == "" {
		cfg.Controller.QuickstartBaseURL = "https://api.yourbrand.ai"
	}
	if cfg.Controller.RetrievalRetries == 0 {
		cfg.Controller.RetrievalRetries = 3
	}
	if cfg.Controller.RetrievalBackoff == 0 {
		cfg.Controller.RetrievalBackoff = 200 * time.Millisecond
	}

	// Learner defaults
	if cfg.Learner.PromotionThreshold == 0 {
		cfg.Learner.PromotionThreshold = 0.8
	}
	if cfg.Learner.RetentionDays == 0 {
		cfg.Learner.RetentionDays = 90
	}
	if cfg.Learner.SweepInterval == 0 {
		cfg.Learner.SweepInterval = 6 * time.Hour
	}

	// NATS subjects
	if cfg.NATS.MetricsSubject == "" {
		cfg.NATS.MetricsSubject = "contentfactory.metrics.submit"
	}
	if cfg.NATS.EventsSubject == "" {
		cfg.NATS.EventsSubject = "contentfactory.runs.completed"
	}

	if cfg.Publish.Timeout == 0 {
		cfg.Publish.Timeout = 15 * time.Second
	}
}

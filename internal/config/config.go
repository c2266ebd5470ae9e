package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the contextpipe service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Backends  BackendsConfig  `yaml:"backends"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds search-index connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string           `yaml:"api_key"`
	BaseURL    string           `yaml:"base_url"`
	Query      VectorizerConfig `yaml:"query"`
	Multimodal VectorizerConfig `yaml:"multimodal"`
}

// VectorizerConfig holds one embedding model's settings.
type VectorizerConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// BackendsConfig holds per-backend retrieval settings.
type BackendsConfig struct {
	Enabled    []string        `yaml:"enabled"`
	Priority   []string        `yaml:"priority"`
	TimeoutMs  int             `yaml:"timeout_ms"`
	Vector     IndexConfig     `yaml:"vector"`
	Keyword    IndexConfig     `yaml:"keyword"`
	Fulltext   IndexConfig     `yaml:"fulltext"`
	Multimodal IndexConfig     `yaml:"multimodal"`
	Web        WebSearchConfig `yaml:"web"`
}

// IndexConfig holds an FT index name and its searchable field.
type IndexConfig struct {
	Index string `yaml:"index"`
	Field string `yaml:"field"`
}

// WebSearchConfig holds the open-web search API settings.
type WebSearchConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// PipelineConfig holds dedup, rerank and assembly tuning.
type PipelineConfig struct {
	DefaultTopK       int            `yaml:"default_top_k"`
	DefaultBudget     int            `yaml:"default_token_budget"`
	DefaultDeadlineMs int            `yaml:"default_deadline_ms"`
	Dedupe            DedupeConfig   `yaml:"dedupe"`
	Rerank            RerankConfig   `yaml:"rerank"`
	Assemble          AssembleConfig `yaml:"assemble"`
}

// DedupeConfig holds near-duplicate detection settings.
type DedupeConfig struct {
	Similarity  float64 `yaml:"similarity"`   // Jaccard threshold for near-duplicates
	ShingleSize int     `yaml:"shingle_size"` // words per shingle
	CacheSize   int     `yaml:"cache_size"`   // cross-request shingle cache entries (0 = disabled)
}

// RerankConfig holds the tunable final-score weights.
type RerankConfig struct {
	ScoreWeight     float64 `yaml:"score_weight"`
	AgreementWeight float64 `yaml:"agreement_weight"`
	RelevanceWeight float64 `yaml:"relevance_weight"`
}

// AssembleConfig holds context assembly settings.
type AssembleConfig struct {
	RelevanceFloor float64 `yaml:"relevance_floor"`
	MinFragment    int     `yaml:"min_fragment"` // smallest truncated tail worth keeping
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if len(c.Backends.Priority) == 0 {
		c.Backends.Priority = []string{"vector", "fulltext", "keyword", "multimodal", "web"}
	}
	if c.Backends.TimeoutMs <= 0 {
		c.Backends.TimeoutMs = 2000
	}
	if c.Backends.Vector.Index == "" {
		c.Backends.Vector.Index = "docs:vec:idx"
	}
	if c.Backends.Keyword.Index == "" {
		c.Backends.Keyword.Index = "docs:kw:idx"
	}
	if c.Backends.Keyword.Field == "" {
		c.Backends.Keyword.Field = "keywords"
	}
	if c.Backends.Fulltext.Index == "" {
		c.Backends.Fulltext.Index = "docs:txt:idx"
	}
	if c.Backends.Fulltext.Field == "" {
		c.Backends.Fulltext.Field = "content"
	}
	if c.Backends.Multimodal.Index == "" {
		c.Backends.Multimodal.Index = "images:vec:idx"
	}
	if c.Pipeline.DefaultTopK <= 0 {
		c.Pipeline.DefaultTopK = 10
	}
	if c.Pipeline.DefaultBudget <= 0 {
		c.Pipeline.DefaultBudget = 2048
	}
	if c.Pipeline.DefaultDeadlineMs <= 0 {
		c.Pipeline.DefaultDeadlineMs = 10000
	}
	if c.Pipeline.Dedupe.Similarity <= 0 {
		c.Pipeline.Dedupe.Similarity = 0.82
	}
	if c.Pipeline.Dedupe.ShingleSize <= 0 {
		c.Pipeline.Dedupe.ShingleSize = 3
	}
	if c.Pipeline.Rerank.ScoreWeight == 0 &&
		c.Pipeline.Rerank.AgreementWeight == 0 &&
		c.Pipeline.Rerank.RelevanceWeight == 0 {
		c.Pipeline.Rerank.ScoreWeight = 0.6
		c.Pipeline.Rerank.AgreementWeight = 0.25
		c.Pipeline.Rerank.RelevanceWeight = 0.15
	}
	if c.Pipeline.Assemble.MinFragment <= 0 {
		c.Pipeline.Assemble.MinFragment = 64
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	known := map[string]struct{}{
		"vector": {}, "keyword": {}, "fulltext": {}, "web": {}, "multimodal": {},
	}
	for _, b := range c.Backends.Enabled {
		if _, ok := known[b]; !ok {
			return fmt.Errorf("backends.enabled contains unknown backend %q", b)
		}
	}
	for _, b := range c.Backends.Priority {
		if _, ok := known[b]; !ok {
			return fmt.Errorf("backends.priority contains unknown backend %q", b)
		}
	}
	if c.Pipeline.Dedupe.Similarity > 1 {
		return fmt.Errorf("pipeline.dedupe.similarity must be in (0, 1], got %v", c.Pipeline.Dedupe.Similarity)
	}
	w := c.Pipeline.Rerank
	if w.ScoreWeight < 0 || w.AgreementWeight < 0 || w.RelevanceWeight < 0 {
		return fmt.Errorf("pipeline.rerank weights must be non-negative")
	}
	if c.Pipeline.Assemble.RelevanceFloor < 0 || c.Pipeline.Assemble.RelevanceFloor > 1 {
		return fmt.Errorf("pipeline.assemble.relevance_floor must be between 0 and 1")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

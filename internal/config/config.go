// Package config loads sgrep's configuration from layered sources:
// built-in defaults, an optional user config file, an optional
// project config file, then environment variable overrides — in that
// order, matching spec.md §6.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is sgrep's complete, immutable runtime configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Indexing   IndexingConfig   `yaml:"indexing" json:"indexing"`
}

// PathsConfig configures which paths the Scanner walks and skips.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// StoreConfig names and locates the on-disk index.
type StoreConfig struct {
	// Name identifies the store's artifact family: <name>.store.bin,
	// <name>.hnsw, etc.
	Name string `yaml:"name" json:"name"`

	// Dir is the directory the store's artifacts live under. Empty
	// means project-local ".sgrep/".
	Dir string `yaml:"dir" json:"dir"`

	// ANNThreshold is the live-chunk count at which an ANN index is
	// built (spec.md §4.4).
	ANNThreshold int `yaml:"ann_threshold" json:"ann_threshold"`
}

// SearchConfig configures hybrid search parameters (spec.md §4.6).
type SearchConfig struct {
	// MaxResults bounds the number of results Search returns.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// LateInteraction enables the optional max-sim blend.
	LateInteraction bool `yaml:"late_interaction" json:"late_interaction"`
}

// EmbeddingProvider names which EmbeddingEngine variant to construct.
type EmbeddingProvider string

const (
	ProviderRemote   EmbeddingProvider = "remote"
	ProviderStandard EmbeddingProvider = "standard"
	ProviderRotary   EmbeddingProvider = "rotary"
	ProviderFusion   EmbeddingProvider = "fusion"
	ProviderStatic   EmbeddingProvider = "static"
)

// EmbeddingsConfig configures the EmbeddingEngine (spec.md §4.3).
type EmbeddingsConfig struct {
	// Provider selects the engine variant. Empty defaults to "static"
	// (no model download required).
	Provider EmbeddingProvider `yaml:"provider" json:"provider"`

	// Dimensions is the expected vector width. Defaults to 768.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize bounds a single Embed call during indexing.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// ModelsDir is the directory model artifacts are cached under.
	ModelsDir string `yaml:"models_dir" json:"models_dir"`

	// Remote provider settings.
	RemoteEndpoint  string `yaml:"remote_endpoint" json:"remote_endpoint"`
	RemoteAPIKeyEnv string `yaml:"remote_api_key_env" json:"remote_api_key_env"`

	// FusionStrategy and FusionAlpha configure the dual-model fusion
	// provider (spec.md §4.3).
	FusionStrategy string  `yaml:"fusion_strategy" json:"fusion_strategy"`
	FusionAlpha    float64 `yaml:"fusion_alpha" json:"fusion_alpha"`

	// QueryCacheSize bounds the LRU cache over EmbedQuery results.
	QueryCacheSize int `yaml:"query_cache_size" json:"query_cache_size"`
}

// RerankConfig configures the reranker fallback chain (spec.md §4.7).
type RerankConfig struct {
	PrimaryEndpoint    string `yaml:"primary_endpoint" json:"primary_endpoint"`
	PrimaryAPIKeyEnv   string `yaml:"primary_api_key_env" json:"primary_api_key_env"`
	SecondaryEndpoint  string `yaml:"secondary_endpoint" json:"secondary_endpoint"`
	SecondaryAPIKeyEnv string `yaml:"secondary_api_key_env" json:"secondary_api_key_env"`
}

// IndexingConfig configures the Indexer's concurrency and tier.
type IndexingConfig struct {
	// Tier selects Fast/Balanced/Quality (spec.md §4.8).
	Tier string `yaml:"tier" json:"tier"`

	// Workers bounds the chunking worker pool. Zero means
	// runtime.NumCPU().
	Workers int `yaml:"workers" json:"workers"`

	// MaxFileSize bounds a single file the Scanner will read, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

const (
	// DefaultConfigDirName is the directory sgrep's project-local
	// artifacts and config live under.
	DefaultConfigDirName = ".sgrep"

	// DefaultUserConfigDirName is the subdirectory of the user's config
	// home sgrep's user-level config lives under.
	DefaultUserConfigDirName = "sgrep"

	// DefaultProjectConfigFile is the project-local config file name.
	DefaultProjectConfigFile = ".sgrep.yaml"

	// DefaultUserConfigFile is the user-level config file name.
	DefaultUserConfigFile = "config.yaml"
)

var defaultExcludePatterns = []string{
	".git", "node_modules", "vendor", "dist", "build", ".sgrep",
	"target", "__pycache__", ".venv", "venv", ".idea", ".vscode",
}

// NewConfig returns a Config populated with sgrep's built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{"."},
			Exclude: append([]string{}, defaultExcludePatterns...),
		},
		Store: StoreConfig{
			Name:         "default",
			ANNThreshold: 1000,
		},
		Search: SearchConfig{
			MaxResults:      20,
			LateInteraction: false,
		},
		Embeddings: EmbeddingsConfig{
			Provider:       ProviderStatic,
			Dimensions:     768,
			BatchSize:      50,
			ModelsDir:      DefaultModelsDir(),
			FusionStrategy: "weighted_average",
			FusionAlpha:    0.4,
			QueryCacheSize: 1000,
		},
		Indexing: IndexingConfig{
			Tier:        "balanced",
			MaxFileSize: 1 << 20,
		},
	}
}

// DefaultModelsDir returns "~/.sgrep/models", falling back to a
// relative path if the home directory cannot be determined.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".sgrep", "models")
	}
	return filepath.Join(home, ".sgrep", "models")
}

// GetUserConfigDir returns the directory sgrep's user-level config
// lives in, honoring XDG_CONFIG_HOME when set.
func GetUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, DefaultUserConfigDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", DefaultUserConfigDirName)
	}
	return filepath.Join(home, ".config", DefaultUserConfigDirName)
}

// GetUserConfigPath returns the full path to the user-level config
// file.
func GetUserConfigPath() string {
	return filepath.Join(GetUserConfigDir(), DefaultUserConfigFile)
}

// UserConfigExists reports whether a user-level config file is present.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// LoadUserConfig loads just the user-level config file, or returns
// built-in defaults if none exists.
func LoadUserConfig() (*Config, error) {
	if !UserConfigExists() {
		return NewConfig(), nil
	}
	return loadFromFile(GetUserConfigPath())
}

// FindProjectRoot walks up from startDir looking for a ".git"
// directory or a project config file, returning the first directory
// that has one. Falls back to startDir if neither is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if dirExists(filepath.Join(dir, ".git")) || fileExists(filepath.Join(dir, DefaultProjectConfigFile)) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// Load resolves a Config for projectDir using sgrep's layered
// precedence: built-in defaults, then the user config file, then the
// project config file, then environment variable overrides.
func Load(projectDir string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		userCfg, err := loadFromFile(GetUserConfigPath())
		if err != nil {
			return nil, err
		}
		cfg.mergeWith(userCfg)
	}

	projectConfigPath := filepath.Join(projectDir, DefaultProjectConfigFile)
	if fileExists(projectConfigPath) {
		projectCfg, err := loadFromFile(projectConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.mergeWith(projectCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return loadYAML(data)
}

func loadYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}
	return &cfg, nil
}

// mergeWith overlays every non-zero field of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = other.Paths.Exclude
	}
	if other.Store.Name != "" {
		c.Store.Name = other.Store.Name
	}
	if other.Store.Dir != "" {
		c.Store.Dir = other.Store.Dir
	}
	if other.Store.ANNThreshold != 0 {
		c.Store.ANNThreshold = other.Store.ANNThreshold
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	c.Search.LateInteraction = other.Search.LateInteraction || c.Search.LateInteraction
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.ModelsDir != "" {
		c.Embeddings.ModelsDir = other.Embeddings.ModelsDir
	}
	if other.Embeddings.RemoteEndpoint != "" {
		c.Embeddings.RemoteEndpoint = other.Embeddings.RemoteEndpoint
	}
	if other.Embeddings.RemoteAPIKeyEnv != "" {
		c.Embeddings.RemoteAPIKeyEnv = other.Embeddings.RemoteAPIKeyEnv
	}
	if other.Embeddings.FusionStrategy != "" {
		c.Embeddings.FusionStrategy = other.Embeddings.FusionStrategy
	}
	if other.Embeddings.FusionAlpha != 0 {
		c.Embeddings.FusionAlpha = other.Embeddings.FusionAlpha
	}
	if other.Embeddings.QueryCacheSize != 0 {
		c.Embeddings.QueryCacheSize = other.Embeddings.QueryCacheSize
	}
	if other.Rerank.PrimaryEndpoint != "" {
		c.Rerank.PrimaryEndpoint = other.Rerank.PrimaryEndpoint
	}
	if other.Rerank.PrimaryAPIKeyEnv != "" {
		c.Rerank.PrimaryAPIKeyEnv = other.Rerank.PrimaryAPIKeyEnv
	}
	if other.Rerank.SecondaryEndpoint != "" {
		c.Rerank.SecondaryEndpoint = other.Rerank.SecondaryEndpoint
	}
	if other.Rerank.SecondaryAPIKeyEnv != "" {
		c.Rerank.SecondaryAPIKeyEnv = other.Rerank.SecondaryAPIKeyEnv
	}
	if other.Indexing.Tier != "" {
		c.Indexing.Tier = other.Indexing.Tier
	}
	if other.Indexing.Workers != 0 {
		c.Indexing.Workers = other.Indexing.Workers
	}
	if other.Indexing.MaxFileSize != 0 {
		c.Indexing.MaxFileSize = other.Indexing.MaxFileSize
	}
}

// applyEnvOverrides layers environment variables over c, the highest
// precedence tier (spec.md §6).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SGREP_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = EmbeddingProvider(v)
	}
	if v := os.Getenv("SGREP_REMOTE_ENDPOINT"); v != "" {
		c.Embeddings.RemoteEndpoint = v
	}
	if v := os.Getenv("SGREP_REMOTE_API_KEY_ENV"); v != "" {
		c.Embeddings.RemoteAPIKeyEnv = v
	}
	if v := os.Getenv("SGREP_FUSION_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Embeddings.FusionAlpha = f
		}
	}
	if v := os.Getenv("SGREP_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("SGREP_LATE_INTERACTION"); v != "" {
		c.Search.LateInteraction = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SGREP_INDEX_TIER"); v != "" {
		c.Indexing.Tier = v
	}
	if v := os.Getenv("SGREP_STORE_NAME"); v != "" {
		c.Store.Name = v
	}
	if v := os.Getenv("SGREP_STORE_DIR"); v != "" {
		c.Store.Dir = v
	}
}

// Validate checks that c's values are internally consistent.
func (c *Config) Validate() error {
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	switch c.Embeddings.Provider {
	case ProviderRemote, ProviderStandard, ProviderRotary, ProviderFusion, ProviderStatic:
	default:
		return fmt.Errorf("embeddings.provider %q is not a known provider", c.Embeddings.Provider)
	}
	if c.Embeddings.FusionAlpha < 0 || c.Embeddings.FusionAlpha > 1 {
		return fmt.Errorf("embeddings.fusion_alpha must be in [0, 1], got %f", c.Embeddings.FusionAlpha)
	}
	switch strings.ToLower(c.Indexing.Tier) {
	case "fast", "balanced", "quality":
	default:
		return fmt.Errorf("indexing.tier %q is not fast/balanced/quality", c.Indexing.Tier)
	}
	return nil
}

// WriteYAML serializes c as YAML to path, creating parent directories
// as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

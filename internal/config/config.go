// Package config handles Aviary configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./aviary.yaml, ~/.config/aviary/aviary.yaml, /etc/aviary/aviary.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"aviary.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "aviary", "aviary.yaml"))
	}

	paths = append(paths, "/etc/aviary/aviary.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Aviary configuration.
type Config struct {
	Database   string           `yaml:"database"`
	Platform   PlatformConfig   `yaml:"platform"`
	Recsys     RecsysConfig     `yaml:"recsys"`
	Models     ModelsConfig     `yaml:"models"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Profiles   ProfilesConfig   `yaml:"profiles"`
	Usage      UsageConfig      `yaml:"usage"`
	Semaphore  int64            `yaml:"semaphore"`
	LogLevel   string           `yaml:"log_level"`
}

// PlatformConfig defines platform behavior switches.
type PlatformConfig struct {
	// AllowSelfRating permits users to like or dislike their own
	// posts and comments. Off by default.
	AllowSelfRating bool `yaml:"allow_self_rating"`
	// ShowScore replaces separate like/dislike counts with a single
	// score (likes minus dislikes) in feed projections.
	ShowScore bool `yaml:"show_score"`
	// FollowingPostCount is how many top-liked followee posts are
	// unioned into each refresh on non-reddit platforms.
	FollowingPostCount int `yaml:"following_post_count"`
	// RefreshRecPostCount bounds how many posts one refresh draws
	// from the rec slate.
	RefreshRecPostCount int `yaml:"refresh_rec_post_count"`
	// TrendNumDays is the trailing trend window. In reddit mode it is
	// days of virtual datetime; in tick mode it converts to ticks at
	// one tick per virtual minute.
	TrendNumDays int `yaml:"trend_num_days"`
	// TrendTopK is how many posts trend returns.
	TrendTopK int `yaml:"trend_top_k"`
	// ReportThreshold is reserved for future moderation and is
	// currently informative only.
	ReportThreshold int `yaml:"report_threshold"`
}

// RecsysConfig selects and bounds the recommendation engine.
type RecsysConfig struct {
	// Type is one of: random, reddit, twhin, twitter.
	Type string `yaml:"type"`
	// MaxRecPostLen bounds rec rows per user.
	MaxRecPostLen int `yaml:"max_rec_post_len"`
	// SwapRate is the fraction of each twitter slate replaced with
	// random posts the user has not interacted with.
	SwapRate float64 `yaml:"swap_rate"`
	// EnableLikeScore folds like-history affinity into twhin scoring.
	EnableLikeScore bool `yaml:"enable_like_score"`
}

// ModelsConfig defines chat model routing.
type ModelsConfig struct {
	// Default is the model agents use when none is set per profile.
	Default   string          `yaml:"default"`
	OllamaURL string          `yaml:"ollama_url"`
	Available []ModelConfig   `yaml:"available"`
	OpenAI    []OpenAIBackend `yaml:"openai"`
}

// ModelConfig routes one model name to a provider.
type ModelConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"` // ollama, openai
}

// OpenAIBackend is an OpenAI-compatible chat endpoint; several entries
// with the same models let agents round-robin across replicas.
type OpenAIBackend struct {
	BaseURL string  `yaml:"base_url"`
	APIKey  string  `yaml:"api_key"`
	RPS     float64 `yaml:"rps"` // requests per second, 0 = unlimited
}

// EmbeddingsConfig defines the embedding backend used by the twhin and
// twitter recommendation strategies.
type EmbeddingsConfig struct {
	Model   string `yaml:"model"`   // e.g. nomic-embed-text
	BaseURL string `yaml:"baseurl"` // defaults to models.ollama_url
}

// ProfilesConfig locates the agent profile files.
type ProfilesConfig struct {
	// Path is a CSV (twitter mode) or JSON array (reddit mode) file.
	Path string `yaml:"path"`
	// Mode is "twitter" or "reddit"; it selects clock flavor, ingest
	// format, and prompt style.
	Mode string `yaml:"mode"`
}

// UsageConfig controls LLM token accounting.
type UsageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // defaults to usage.db beside the platform database
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a runnable default configuration: random recsys,
// twitter-style tick clock, local Ollama endpoints.
func Default() *Config {
	return &Config{
		Database: "aviary.db",
		Platform: PlatformConfig{
			FollowingPostCount:  3,
			RefreshRecPostCount: 5,
			TrendNumDays:        7,
			TrendTopK:           10,
		},
		Recsys: RecsysConfig{
			Type:          "random",
			MaxRecPostLen: 2,
			SwapRate:      0.1,
		},
		Models: ModelsConfig{
			Default:   "qwen3:4b",
			OllamaURL: "http://localhost:11434",
		},
		Embeddings: EmbeddingsConfig{
			Model: "nomic-embed-text",
		},
		Profiles: ProfilesConfig{
			Mode: "twitter",
		},
		Semaphore: 128,
	}
}

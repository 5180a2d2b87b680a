package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	KindConfluence = "confluence"
	KindWeb        = "web"
)

// SourceConfig describes one origin of pages to ingest.
type SourceConfig struct {
	Name  string   `yaml:"name"`
	Kind  string   `yaml:"kind"`
	Pages []string `yaml:"pages,omitempty"`
	// BaseURL enables sitemap discovery for web sources.
	BaseURL string `yaml:"base_url,omitempty"`
	// Auth sends a bearer token resolved from TokenEnv with every page fetch.
	Auth     bool   `yaml:"auth"`
	TokenEnv string `yaml:"token_env,omitempty"`
}

// FetchConfig controls page and sitemap fetching.
type FetchConfig struct {
	TimeoutSecs   int    `yaml:"timeout_secs"`
	DelayMS       int    `yaml:"delay_ms"`
	UserAgent     string `yaml:"user_agent"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`
	SitemapLimit  int    `yaml:"sitemap_limit"`
	RespectRobots bool   `yaml:"respect_robots"`
}

// ExtractorConfig selects how text is pulled out of page markup.
type ExtractorConfig struct {
	Mode string `yaml:"mode"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how a corpus is split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type"`
	MaxChunkSize int    `yaml:"max_chunk_size"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
// The collection name is the source's index name.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SQLiteConfig locates the on-disk index database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// OpenAIAnswererConfig configures the chat-completion answerer.
type OpenAIAnswererConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// AnswererConfig selects how questions are answered.
type AnswererConfig struct {
	Type         string                `yaml:"type"`
	MaxSentences int                   `yaml:"max_sentences"`
	OpenAI       *OpenAIAnswererConfig `yaml:"openai,omitempty"`
}

// RetrievalConfig controls how many chunks back an answer.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Sources              []SourceConfig    `yaml:"sources"`
	Fetch                FetchConfig       `yaml:"fetch"`
	Extractor            ExtractorConfig   `yaml:"extractor"`
	Chunker              ChunkerConfig     `yaml:"chunker"`
	Embedder             EmbedderConfig    `yaml:"embedder"`
	VectorStore          VectorStoreConfig `yaml:"vector_store"`
	Answerer             AnswererConfig    `yaml:"answerer"`
	Retrieval            RetrievalConfig   `yaml:"retrieval"`
	EnvFiles             []string          `yaml:"env_files"`
	MaxConcurrentSources int               `yaml:"max_concurrent_sources"`
}

// Source returns the source configured under name.
func (c *AppConfig) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pagerag/config.yaml.
// If neither exists, it writes defaults to ~/.config/pagerag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pagerag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Extractor:   ExtractorConfig{Mode: "text"},
		Chunker:     ChunkerConfig{Type: "sentence"},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Answerer:    AnswererConfig{Type: "extractive"},
		EnvFiles:    []string{".env"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Fetch.TimeoutSecs == 0 {
		cfg.Fetch.TimeoutSecs = 30
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "pagerag/1.0"
	}
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = 10 << 20
	}
	if cfg.Fetch.SitemapLimit == 0 {
		cfg.Fetch.SitemapLimit = 10
	}
	if cfg.Chunker.MaxChunkSize == 0 {
		cfg.Chunker.MaxChunkSize = 3000
	}
	if cfg.Answerer.MaxSentences == 0 {
		cfg.Answerer.MaxSentences = 5
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.MaxConcurrentSources == 0 {
		cfg.MaxConcurrentSources = 1
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].Kind == "" {
			cfg.Sources[i].Kind = KindWeb
			if cfg.Sources[i].Auth {
				cfg.Sources[i].Kind = KindConfluence
			}
		}
		if cfg.Sources[i].Auth && cfg.Sources[i].TokenEnv == "" {
			cfg.Sources[i].TokenEnv = "CONFLUENCE_API_TOKEN"
		}
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	if cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.VectorStore.Type == "sqlite" && cfg.VectorStore.SQLite == nil {
		cfg.VectorStore.SQLite = &SQLiteConfig{}
	}
	if cfg.VectorStore.SQLite != nil && cfg.VectorStore.SQLite.Path == "" {
		cfg.VectorStore.SQLite.Path = filepath.Join("data", "index.db")
	}
	if cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 15
	}
	if cfg.Answerer.Type == "openai" && cfg.Answerer.OpenAI == nil {
		cfg.Answerer.OpenAI = &OpenAIAnswererConfig{}
	}
	if cfg.Answerer.OpenAI != nil {
		if cfg.Answerer.OpenAI.BaseURL == "" {
			cfg.Answerer.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Answerer.OpenAI.APIKeyEnv == "" {
			cfg.Answerer.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Answerer.OpenAI.Model == "" {
			cfg.Answerer.OpenAI.Model = "gpt-4o-mini"
		}
		if cfg.Answerer.OpenAI.Temperature == 0 {
			cfg.Answerer.OpenAI.Temperature = 0.3
		}
		if cfg.Answerer.OpenAI.TimeoutSecs == 0 {
			cfg.Answerer.OpenAI.TimeoutSecs = 120
		}
	}
}

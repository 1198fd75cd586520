package gomatch

import (
	"os"
	"path/filepath"

	"github.com/bbiangul/go-match/rank"
	"github.com/bbiangul/go-match/scoring"
)

// Config holds all configuration for the matching engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.gomatch/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "gomatch".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. Options: "home" (default) uses ~/.gomatch/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers. Chat powers the generative fallback, Embedding the
	// school retrieval index.
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// Embedding dimensions (must match the embedding model).
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// RetrievalTopK is the number of candidate schools fetched from the
	// vector index per match (default 20).
	RetrievalTopK int `json:"retrieval_top_k" yaml:"retrieval_top_k"`

	// TopN is the number of recommendations returned per match
	// (default 5).
	TopN int `json:"top_n" yaml:"top_n"`

	// SkillMatchTopN caps the programs returned by skill-graph lookup
	// (default 30).
	SkillMatchTopN int `json:"skill_match_top_n" yaml:"skill_match_top_n"`

	// Weights overrides the six-factor score distribution. Zero value
	// means defaults.
	Weights scoring.Weights `json:"weights" yaml:"weights"`

	// Fusion overrides the hybrid ranking weights. Zero fields mean
	// defaults.
	Fusion rank.Config `json:"fusion" yaml:"fusion"`

	// DisableFallback turns off generative recommendations when the
	// pipeline produces no candidates.
	DisableFallback bool `json:"disable_fallback" yaml:"disable_fallback"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local
// inference. The database is stored in ~/.gomatch/gomatch.db.
func DefaultConfig() Config {
	return Config{
		DBName:     "gomatch",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:   768,
		RetrievalTopK:  20,
		TopN:           5,
		SkillMatchTopN: 30,
		Weights:        scoring.DefaultWeights(),
		Fusion:         rank.DefaultConfig(),
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "gomatch"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".gomatch")
		return filepath.Join(dir, name+".db")
	}
}

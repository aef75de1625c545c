// Package config holds engine-wide configuration and the env var
// overrides the CLI entrypoint applies on top of it, mirroring the
// teacher's flat Config-plus-DefaultConfig-plus-env-overrides pattern.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds every tunable the docintel engine needs to run.
type Config struct {
	// DBPath is the full path to the SQLite database file. If empty,
	// resolved from DBName/StorageDir via ResolveDBPath.
	DBPath     string `json:"db_path" yaml:"db_path"`
	DBName     string `json:"db_name" yaml:"db_name"`
	StorageDir string `json:"storage_dir" yaml:"storage_dir"` // "home" or "local"

	// Backends
	OCR   BackendConfig `json:"ocr" yaml:"ocr"`
	VLM   BackendConfig `json:"vlm" yaml:"vlm"`
	Embed BackendConfig `json:"embed" yaml:"embed"`
	Rerank BackendConfig `json:"rerank" yaml:"rerank"`

	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// Chunking
	ChunkSize    int     `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap float64 `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Hybrid retrieval
	WeightBM25      float64 `json:"weight_bm25" yaml:"weight_bm25"`
	WeightVector    float64 `json:"weight_vector" yaml:"weight_vector"`
	RRFConstant     int     `json:"rrf_constant" yaml:"rrf_constant"`
	EntityBoost     float64 `json:"entity_boost" yaml:"entity_boost"`
	MaxContextChars int     `json:"max_context_chars" yaml:"max_context_chars"`

	// Pipeline
	MaxConcurrentDocuments int `json:"max_concurrent_documents" yaml:"max_concurrent_documents"`

	// Knowledge graph resolution thresholds, per entity type. Empty
	// falls back to DefaultKGThresholds.
	KGThresholds map[string]float64 `json:"kg_thresholds" yaml:"kg_thresholds"`

	// KGArchiveDir is where a document's knowledge-graph subgraph is
	// snapshotted before deletion. Relative paths resolve against the
	// working directory the engine runs in.
	KGArchiveDir string `json:"kg_archive_dir" yaml:"kg_archive_dir"`
}

// BackendConfig configures a single external backend endpoint (OCR,
// VLM, embedder, or reranker).
type BackendConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// Default returns a Config with sensible defaults for local inference
// against an SQLite file in the user's home directory.
func Default() Config {
	return Config{
		DBName:     "docintel",
		StorageDir: "home",
		OCR: BackendConfig{
			Provider: "local",
		},
		VLM: BackendConfig{
			Provider: "ollama",
			Model:    "llama3.2-vision",
			BaseURL:  "http://localhost:11434",
		},
		Embed: BackendConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:           768,
		ChunkSize:              2000,
		ChunkOverlap:           0.10,
		WeightBM25:             1.0,
		WeightVector:           1.0,
		RRFConstant:            60,
		EntityBoost:            0.15,
		MaxContextChars:        8000,
		MaxConcurrentDocuments: 3,
		KGArchiveDir:           "kg-archives",
	}
}

// ResolveDBPath computes the final database path from DBPath/DBName/StorageDir.
func (c *Config) ResolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	name := c.DBName
	if name == "" {
		name = "docintel"
	}
	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		return filepath.Join(home, ".docintel", name+".db")
	}
}

// ApplyEnv overlays environment variable overrides onto c, the way
// the teacher's cmd/server/main.go layers GOREASON_* vars on top of
// DefaultConfig. Unset variables leave the existing field untouched.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DOCINTEL_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DOCINTEL_OCR_PROVIDER"); v != "" {
		c.OCR.Provider = v
	}
	if v := os.Getenv("DOCINTEL_VLM_PROVIDER"); v != "" {
		c.VLM.Provider = v
	}
	if v := os.Getenv("DOCINTEL_VLM_MODEL"); v != "" {
		c.VLM.Model = v
	}
	if v := os.Getenv("DOCINTEL_VLM_BASE_URL"); v != "" {
		c.VLM.BaseURL = v
	}
	if v := os.Getenv("DOCINTEL_EMBED_PROVIDER"); v != "" {
		c.Embed.Provider = v
	}
	if v := os.Getenv("DOCINTEL_EMBED_MODEL"); v != "" {
		c.Embed.Model = v
	}
	if v := os.Getenv("DOCINTEL_EMBED_BASE_URL"); v != "" {
		c.Embed.BaseURL = v
	}
	if v := os.Getenv("DOCINTEL_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.EmbeddingDim = n
		}
	}
	if v := os.Getenv("DOCINTEL_MAX_CONCURRENT_DOCUMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrentDocuments = n
		}
	}
	if v := os.Getenv("DOCINTEL_KG_ARCHIVE_DIR"); v != "" {
		c.KGArchiveDir = v
	}

	// Provider-specific API key fallback, same chain the teacher's
	// cmd/server/main.go applies: explicit config wins, then a
	// provider-named env var.
	for _, backend := range []*BackendConfig{&c.OCR, &c.VLM, &c.Embed, &c.Rerank} {
		if backend.APIKey != "" {
			continue
		}
		switch backend.Provider {
		case "openai":
			backend.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			backend.APIKey = os.Getenv("GROQ_API_KEY")
		case "openrouter":
			backend.APIKey = os.Getenv("OPENROUTER_API_KEY")
		}
	}
}

// DefaultKGThresholds is the per-entity-type acceptance threshold for
// resolving a mention onto an existing knowledge node. Medical and
// legal identifier types (case numbers, medications) use a tighter
// threshold than free-text names, which tolerate more fuzz.
var DefaultKGThresholds = map[string]float64{
	"person":         0.85,
	"organization":    0.80,
	"location":        0.82,
	"date":            0.95,
	"amount":          0.98,
	"case_number":     0.95,
	"medication":      0.90,
	"diagnosis":       0.85,
	"medical_device":  0.90,
	"other":           0.85,
}

// Threshold returns the acceptance threshold for entityType, falling
// back to the configured defaults and then "other".
func (c Config) Threshold(entityType string) float64 {
	if c.KGThresholds != nil {
		if t, ok := c.KGThresholds[entityType]; ok {
			return t
		}
	}
	if t, ok := DefaultKGThresholds[entityType]; ok {
		return t
	}
	return DefaultKGThresholds["other"]
}

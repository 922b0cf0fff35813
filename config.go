package counsel

import (
	"os"
	"path/filepath"

	"github.com/counselengine/counsel/llm"
)

// Config holds all configuration for the counsel engine. Populated from
// defaults, optionally overlaid with a config file and environment
// variables by cmd/counsel's Viper setup.
type Config struct {
	// DataDir is the root of the persisted layout: books/, vector_store/,
	// ledger.db all live under it. Defaults to ~/.counsel.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// LLM providers.
	Reasoning llm.Config `json:"reasoning" yaml:"reasoning"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// Retrieval.
	EmbeddingDim        int     `json:"embedding_dim" yaml:"embedding_dim"`
	RetrievalWindow     int     `json:"retrieval_window" yaml:"retrieval_window"`
	SynthesisWindow     int     `json:"synthesis_window" yaml:"synthesis_window"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// Chunking.
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Ingestion concurrency.
	EmbedConcurrency int `json:"embed_concurrency" yaml:"embed_concurrency"`

	// War mode.
	WarCouncilMin int `json:"war_council_min" yaml:"war_council_min"`
	WarCouncilMax int `json:"war_council_max" yaml:"war_council_max"`
	WarBooksMin   int `json:"war_books_min" yaml:"war_books_min"`
	WarBooksMax   int `json:"war_books_max" yaml:"war_books_max"`

	// Quick-mode auto-escalation.
	QuickEscalationRiskThreshold float64 `json:"quick_escalation_risk_threshold" yaml:"quick_escalation_risk_threshold"`
}

// DefaultConfig returns a Config with sensible defaults for local
// inference, with Ollama as the default backend for both reasoning and
// embedding.
func DefaultConfig() Config {
	return Config{
		DataDir: resolveDataDir(""),
		Reasoning: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:                 768,
		RetrievalWindow:              8,
		SynthesisWindow:              40,
		ConfidenceThreshold:          0.6,
		MaxChunkTokens:               512,
		ChunkOverlap:                 64,
		EmbedConcurrency:             2,
		WarCouncilMin:                3,
		WarCouncilMax:                5,
		WarBooksMin:                  2,
		WarBooksMax:                  5,
		QuickEscalationRiskThreshold: 0.75,
	}
}

// resolveDataDir computes the data directory: an explicit path wins,
// otherwise ~/.counsel, falling back to the working directory if the
// home directory can't be resolved.
func resolveDataDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".counsel"
	}
	return filepath.Join(home, ".counsel")
}

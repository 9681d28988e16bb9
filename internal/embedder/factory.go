// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. The default local backend
// runs in-process; the others talk to a hosted backend (OpenAI, Azure OpenAI,
// Ollama) via plain HTTP.
package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/docchat/internal/rag"
)

// Supported embedding backends.
const (
	BackendLocal  = "local"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Settings is the resolved embedding configuration.
type Settings struct {
	// Backend is one of local, ollama, openai, azure.
	Backend string
	// Model is the embedding model name. Ignored by the local backend.
	Model string
	// APIKey authenticates against openai/azure.
	APIKey string
	// Endpoint is the base URL (ollama host, OpenAI base URL or Azure resource endpoint).
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the vector size. Zero selects the backend default.
	Dimensions int
	// RateLimit caps Embed calls per second. Zero disables limiting.
	RateLimit float64
}

// DefaultDimensions returns the correct default embedding vector size for the
// given backend name. Callers that need to pre-configure a vector store (e.g.
// Qdrant collection creation) should use this rather than hardcoding a value.
func DefaultDimensions(backend string) int {
	switch backend {
	case BackendLocal, "":
		return defaultLocalDimensions
	case BackendOllama:
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// SettingsFromEnv resolves embedding settings from the environment.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER selects the backend (default: local)
//  2. EMBEDDING_MODEL overrides the default model for the backend
//  3. EMBEDDING_API_KEY overrides the backend's native key (OPENAI_API_KEY, AZURE_OPENAI_API_KEY)
//  4. EMBEDDING_ENDPOINT overrides the backend's native endpoint (OLLAMA_HOST, OPENAI_BASE_URL, AZURE_OPENAI_ENDPOINT)
//  5. EMBEDDING_DIMENSIONS overrides the default dimensions (local: 384, ollama: 768, openai/azure: 1536)
//  6. EMBEDDING_RATE_LIMIT sets the maximum embedding calls per second
func SettingsFromEnv() Settings {
	s := Settings{
		Backend:    getEnvOrDefault("EMBEDDING_PROVIDER", BackendLocal),
		Model:      getEnv("EMBEDDING_MODEL"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		RateLimit:  getEnvFloat("EMBEDDING_RATE_LIMIT", 0),
	}

	switch s.Backend {
	case BackendOllama:
		if s.Endpoint == "" {
			s.Endpoint = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		if s.Model == "" {
			s.Model = defaultOllamaModel
		}
	case BackendOpenAI:
		if s.APIKey == "" {
			s.APIKey = getEnv("OPENAI_API_KEY")
		}
		if s.Endpoint == "" {
			s.Endpoint = getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
		}
		if s.Model == "" {
			s.Model = defaultOpenAIModel
		}
	case BackendAzure:
		if s.APIKey == "" {
			s.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if s.Endpoint == "" {
			s.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if s.Model == "" {
			s.Model = defaultOpenAIModel
		}
	}

	s.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", DefaultDimensions(s.Backend))
	return s
}

// New constructs a rag.Embedder for the given settings, wrapped in a rate
// limiter when RateLimit is positive.
func New(s Settings) (rag.Embedder, error) {
	var emb rag.Embedder

	switch s.Backend {
	case BackendLocal, "":
		emb = NewLocalEmbedder(s.Dimensions)

	case BackendOllama:
		emb = NewOllamaEmbedder(&OllamaConfig{
			Host:  s.Endpoint,
			Model: s.Model,
		})

	case BackendOpenAI:
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		emb = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    s.Endpoint,
			APIKey:     s.APIKey,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		})

	case BackendAzure:
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if s.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		emb = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    s.Endpoint + "/openai",
			APIKey:     s.APIKey,
			Model:      s.Model,
			Dimensions: s.Dimensions,
			Azure:      true,
			APIVersion: s.APIVersion,
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: local, ollama, openai, azure", s.Backend)
	}

	if s.RateLimit > 0 {
		emb = NewRateLimited(emb, s.RateLimit, 1)
	}
	return emb, nil
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

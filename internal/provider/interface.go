// Package provider selects and constructs the chat-completion backend that
// streams answers. Supported backends: Groq (default), OpenAI, Azure OpenAI,
// Ollama, Google Gemini and Volcengine Ark. Every backend is exposed as an
// eino model.BaseChatModel so the generation layer never depends on one.
package provider

import (
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGroq selects Groq's OpenAI-compatible endpoint.
	BackendGroq Backend = "groq"
	// BackendOpenAI selects the OpenAI API (or any OpenAI-compatible base URL).
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
)

// ProviderGroq holds Groq settings.
type ProviderGroq struct {
	// APIKey is read from GROQ_API_KEY.
	APIKey string
	// BaseURL is the OpenAI-compatible endpoint (default: https://api.groq.com/openai/v1).
	BaseURL string
	// Model is the model id (default: openai/gpt-oss-20b).
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is read from OPENAI_API_KEY.
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the library default.
	BaseURL string
	// Model is the model id (default: gpt-4o-mini).
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is read from AZURE_OPENAI_API_KEY.
	APIKey string
	// Endpoint is the resource endpoint, e.g. https://my.openai.azure.com.
	Endpoint string
	// Deployment is the deployment name used as the model id.
	Deployment string
	// APIVersion is the REST API version (default: 2024-02-01).
	APIVersion string
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama base URL (default: http://localhost:11434).
	Host string
	// Model is the local model name (default: llama3).
	Model string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is read from GOOGLE_API_KEY.
	APIKey string
	// Model is the model id (default: gemini-1.5-flash).
	Model string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is read from ARK_API_KEY.
	APIKey string
	// BaseURL overrides the Ark endpoint; empty uses the library default.
	BaseURL string
	// Model is the endpoint or model id.
	Model string
}

// SharedTuning holds generation parameters common to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per answer. Zero leaves
	// the backend default.
	MaxTokens int
	// Temperature controls response randomness.
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Groq        ProviderGroq
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ollama      ProviderOllama
	Gemini      ProviderGemini
	Ark         ProviderArk

	// Tuning applies to whichever backend is selected.
	Tuning SharedTuning
}

// Validate checks that the selected backend has the settings it cannot work
// without. A missing API key is only an error where the client library
// refuses to start without one (Gemini); for the others it is reported by
// MissingCredential and surfaces as an auth error on the first request.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGroq:
		if c.Groq.Model == "" {
			return fmt.Errorf("provider: groq requires MODEL_NAME or GROQ_MODEL")
		}
		if c.Groq.BaseURL == "" {
			return fmt.Errorf("provider: groq requires GROQ_BASE_URL")
		}
	case BackendOpenAI:
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: openai requires MODEL_NAME or OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: ollama requires MODEL_NAME or OLLAMA_MODEL")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: gemini requires GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: gemini requires MODEL_NAME or GEMINI_MODEL")
		}
	case BackendArk:
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ark requires MODEL_NAME or ARK_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: groq, openai, azure, ollama, gemini, ark", c.Backend)
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be between 0 and 2, got %v", c.Tuning.Temperature)
	}
	if c.Tuning.MaxTokens < 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative, got %d", c.Tuning.MaxTokens)
	}
	return nil
}

// MissingCredential returns the name of the environment variable holding
// the selected backend's API key when that key is empty, or "" when the key
// is set or the backend needs none.
func (c *Config) MissingCredential() string {
	switch c.Backend {
	case BackendGroq:
		if c.Groq.APIKey == "" {
			return "GROQ_API_KEY"
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return "OPENAI_API_KEY"
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return "AZURE_OPENAI_API_KEY"
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return "GOOGLE_API_KEY"
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return "ARK_API_KEY"
		}
	}
	return ""
}

// ModelName returns the model id (or Azure deployment) of the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendGroq:
		return c.Groq.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendOllama:
		return c.Ollama.Model
	case BackendGemini:
		return c.Gemini.Model
	case BackendArk:
		return c.Ark.Model
	}
	return ""
}

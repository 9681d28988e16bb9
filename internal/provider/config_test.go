package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── Groq ──────────────────────────────────────────────────────────────
		{
			name: "groq/valid",
			cfg: Config{
				Backend: BackendGroq,
				Groq:    ProviderGroq{APIKey: "gsk-test", BaseURL: DefaultGroqBaseURL, Model: DefaultGroqModel},
			},
		},
		{
			name: "groq/missing api key is not an error",
			cfg: Config{
				Backend: BackendGroq,
				Groq:    ProviderGroq{BaseURL: DefaultGroqBaseURL, Model: DefaultGroqModel},
			},
		},
		{
			name:    "groq/missing model",
			cfg:     Config{Backend: BackendGroq, Groq: ProviderGroq{BaseURL: DefaultGroqBaseURL}},
			wantErr: "GROQ_MODEL",
		},
		{
			name:    "groq/missing base url",
			cfg:     Config{Backend: BackendGroq, Groq: ProviderGroq{Model: DefaultGroqModel}},
			wantErr: "GROQ_BASE_URL",
		},

		// ── OpenAI ────────────────────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg: Config{
				Backend: BackendOpenAI,
				OpenAI:  ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o"},
			},
		},
		{
			name:    "openai/missing model",
			cfg:     Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test"}},
			wantErr: "OPENAI_MODEL",
		},

		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg: Config{
				Backend: BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{
					APIKey:     "key",
					Endpoint:   "https://my.openai.azure.com",
					Deployment: "gpt-4o",
					APIVersion: "2024-02-01",
				},
			},
		},
		{
			name: "azure/missing endpoint",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Deployment: "gpt-4o"},
			},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name: "azure/missing deployment",
			cfg: Config{
				Backend:     BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{APIKey: "key", Endpoint: "https://my.openai.azure.com"},
			},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},

		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
			},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: "http://localhost:11434"}},
			wantErr: "OLLAMA_MODEL",
		},

		// ── Gemini ────────────────────────────────────────────────────────────
		{
			name: "gemini/valid",
			cfg: Config{
				Backend: BackendGemini,
				Gemini:  ProviderGemini{APIKey: "key", Model: "gemini-1.5-flash"},
			},
		},
		{
			name:    "gemini/missing api key",
			cfg:     Config{Backend: BackendGemini, Gemini: ProviderGemini{Model: "gemini-1.5-flash"}},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "gemini/missing model",
			cfg:     Config{Backend: BackendGemini, Gemini: ProviderGemini{APIKey: "key"}},
			wantErr: "GEMINI_MODEL",
		},

		// ── Ark ───────────────────────────────────────────────────────────────
		{
			name:    "ark/missing model",
			cfg:     Config{Backend: BackendArk, Ark: ProviderArk{APIKey: "key"}},
			wantErr: "ARK_MODEL",
		},

		// ── Shared ────────────────────────────────────────────────────────────
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "bedrock"},
			wantErr: "unknown backend",
		},
		{
			name: "temperature out of range",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Model: "llama3"},
				Tuning:  SharedTuning{Temperature: 3},
			},
			wantErr: "MODEL_TEMPERATURE",
		},
		{
			name: "negative max tokens",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Model: "llama3"},
				Tuning:  SharedTuning{MaxTokens: -1},
			},
			wantErr: "MODEL_MAX_TOKENS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// clearProviderEnv blanks every variable ConfigFromEnv reads so the host
// environment cannot leak into a test.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MODEL_PROVIDER", "MODEL_NAME", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"GROQ_API_KEY", "GROQ_BASE_URL", "GROQ_MODEL",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"OLLAMA_HOST", "OLLAMA_MODEL",
		"GOOGLE_API_KEY", "GEMINI_MODEL",
		"ARK_API_KEY", "ARK_BASE_URL", "ARK_MODEL",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	clearProviderEnv(t)

	cfg := ConfigFromEnv()
	assert.Equal(t, BackendGroq, cfg.Backend)
	assert.Equal(t, DefaultGroqBaseURL, cfg.Groq.BaseURL)
	assert.Equal(t, DefaultGroqModel, cfg.ModelName())
	assert.InDelta(t, DefaultTemperature, cfg.Tuning.Temperature, 1e-6)
	assert.Zero(t, cfg.Tuning.MaxTokens)
	assert.Equal(t, "GROQ_API_KEY", cfg.MissingCredential())
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("MODEL_NAME", "gpt-4.1-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MODEL_TEMPERATURE", "0.7")
	t.Setenv("MODEL_MAX_TOKENS", "512")

	cfg := ConfigFromEnv()
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "gpt-4.1-mini", cfg.ModelName())
	assert.Equal(t, DefaultGroqModel, cfg.Groq.Model, "MODEL_NAME leaked into an inactive backend")
	assert.InDelta(t, 0.7, cfg.Tuning.Temperature, 1e-6)
	assert.Equal(t, 512, cfg.Tuning.MaxTokens)
	assert.Empty(t, cfg.MissingCredential())
}

func TestConfigFromEnv_UnparseableNumbersFallBack(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("MODEL_TEMPERATURE", "warm")
	t.Setenv("MODEL_MAX_TOKENS", "lots")

	cfg := ConfigFromEnv()
	assert.InDelta(t, DefaultTemperature, cfg.Tuning.Temperature, 1e-6)
	assert.Zero(t, cfg.Tuning.MaxTokens)
}

func TestMissingCredential_Ollama(t *testing.T) {
	t.Parallel()
	cfg := Config{Backend: BackendOllama, Ollama: ProviderOllama{Model: "llama3"}}
	assert.Empty(t, cfg.MissingCredential())
}

func TestNew_ConstructsWithoutNetwork(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "groq without key",
			cfg: Config{
				Backend: BackendGroq,
				Groq:    ProviderGroq{BaseURL: DefaultGroqBaseURL, Model: DefaultGroqModel},
				Tuning:  SharedTuning{Temperature: DefaultTemperature},
			},
		},
		{
			name: "openai",
			cfg: Config{
				Backend: BackendOpenAI,
				OpenAI:  ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"},
				Tuning:  SharedTuning{Temperature: DefaultTemperature, MaxTokens: 256},
			},
		},
		{
			name: "azure",
			cfg: Config{
				Backend: BackendAzure,
				AzureOpenAI: ProviderAzureOpenAI{
					APIKey:     "key",
					Endpoint:   "https://my.openai.azure.com",
					Deployment: "gpt-4.1",
					APIVersion: "2024-02-01",
				},
			},
		},
		{
			name: "ollama",
			cfg: Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, err := New(context.Background(), &tc.cfg)
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), &Config{Backend: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOllamaEmbedder_Integration performs a real HTTP call to a locally running
// Ollama instance to validate the embedder end-to-end.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"A empresa foi fundada em 2020.",
		"Os colaboradores têm direito a 30 dias de férias.",
	}

	embeddings, err := emb.Embed(ctx, texts)
	require.NoError(t, err, "ensure Ollama is running and %q is pulled", model)
	require.Len(t, embeddings, len(texts))

	for i, vec := range embeddings {
		assert.NotEmpty(t, vec, "embedding[%d]", i)
	}
	assert.NotEqual(t, embeddings[0], embeddings[1], "distinct texts must not embed identically")

	t.Logf("model=%s dim=%d (set EMBEDDING_DIMENSIONS=%d for the vector store)", model, len(embeddings[0]), len(embeddings[0]))
}

package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docchat/internal/embedder"
	"github.com/54b3r/docchat/internal/generation"
	"github.com/54b3r/docchat/internal/provider"
	"github.com/54b3r/docchat/internal/rag"
)

// echoModel answers with the CONTEXTO section of the prompt, which is what a
// well-behaved model grounded on that context would cite.
type echoModel struct {
	calls int
}

func (e *echoModel) answer(input []*schema.Message) string {
	e.calls++
	var prompt string
	for _, m := range input {
		prompt += m.Content
	}
	_, rest, ok := strings.Cut(prompt, "CONTEXTO:\n")
	if !ok {
		return ""
	}
	ctxText, _, _ := strings.Cut(rest, "\n\nPERGUNTA")
	return ctxText
}

func (e *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(e.answer(input), nil), nil
}

func (e *echoModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	words := strings.SplitAfter(e.answer(input), " ")
	msgs := make([]*schema.Message, 0, len(words))
	for _, w := range words {
		msgs = append(msgs, schema.AssistantMessage(w, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func testSettings(t *testing.T) Settings {
	t.Helper()
	dir := t.TempDir()
	return Settings{
		VectorStore:      StoreSQLite,
		StorePath:        filepath.Join(dir, "vectors.db"),
		Collection:       DefaultCollection,
		DocsDir:          filepath.Join(dir, "documentos"),
		TopK:             rag.DefaultTopK,
		Fallback:         generation.DefaultFallback,
		MaxContextTokens: 6000,
		Embedding:        embedder.Settings{Backend: embedder.BackendLocal, Dimensions: 128},
	}
}

func newTestApp(t *testing.T, s Settings) (*App, *echoModel) {
	t.Helper()
	cm := &echoModel{}
	a, err := New(context.Background(), s, nil, WithChatModel(cm), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, cm
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGroundedAnswerScenario(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	writeFile(t, filepath.Join(s.DocsDir, "empresa.txt"), "A empresa foi fundada em 2020.")
	a, cm := newTestApp(t, s)
	ctx := context.Background()

	res, err := a.Pipeline.Run(ctx, s.DocsDir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"empresa.txt"}, res.Ingested)

	contextText, docs, err := a.Retriever.Context(ctx, "Quando a empresa foi fundada?", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A empresa foi fundada em 2020.", contextText)
	assert.Equal(t, "empresa.txt", docs[0].Metadata["origin"])

	var out bytes.Buffer
	answer, err := a.Generator.Answer(ctx, "Quando a empresa foi fundada?", contextText, &out)
	require.NoError(t, err)
	assert.Contains(t, answer, "2020")
	assert.Equal(t, answer, out.String())
	assert.Equal(t, 1, cm.calls)
}

func TestEmptyCollectionScenario(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	a, cm := newTestApp(t, s)
	ctx := context.Background()

	contextText, docs, err := a.Retriever.Context(ctx, "Qual é a política de viagens?", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, contextText)

	answer, err := a.Generator.Answer(ctx, "Qual é a política de viagens?", contextText, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "Não encontrei essa informação", answer)
	assert.Zero(t, cm.calls)
}

func TestCorruptPDFScenario(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	writeFile(t, filepath.Join(s.DocsDir, "relatorio.pdf"), "%PDF-1.4 this is not really a pdf")
	writeFile(t, filepath.Join(s.DocsDir, "ferias.txt"), "Férias de 30 dias.")
	a, _ := newTestApp(t, s)
	ctx := context.Background()

	res, err := a.Pipeline.Run(ctx, s.DocsDir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ferias.txt"}, res.Ingested)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "relatorio.pdf", res.Failed[0].File)

	_, err = a.Store.Get(ctx, "relatorio.pdf")
	assert.ErrorIs(t, err, rag.ErrNotFound)
	doc, err := a.Store.Get(ctx, "ferias.txt")
	require.NoError(t, err)
	assert.Equal(t, "Férias de 30 dias.", doc.Content)
}

func TestShellSession(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	writeFile(t, filepath.Join(s.DocsDir, "empresa.txt"), "A empresa foi fundada em 2020.")
	a, _ := newTestApp(t, s)

	var out bytes.Buffer
	sh, err := a.Shell(strings.NewReader("1\n2\nQuando a empresa foi fundada?\nsair\n3\n"), &out)
	require.NoError(t, err)
	require.NoError(t, sh.Run(context.Background()))

	assert.Contains(t, out.String(), "Memorizando: empresa.txt...")
	assert.Contains(t, out.String(), "A empresa foi fundada em 2020.")
}

func TestPersistenceAcrossRuns(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	writeFile(t, filepath.Join(s.DocsDir, "empresa.txt"), "A empresa foi fundada em 2020.")
	ctx := context.Background()

	first, err := New(ctx, s, nil, WithChatModel(&echoModel{}), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	_, err = first.Pipeline.Run(ctx, s.DocsDir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, _ := newTestApp(t, s)
	n, err := second.Store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_InvalidSettings(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.VectorStore = "chroma"
	_, err := New(context.Background(), s, nil, WithChatModel(&echoModel{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VECTOR_STORE")

	s = testSettings(t)
	s.Embedding = embedder.Settings{Backend: "word2vec"}
	_, err = New(context.Background(), s, nil, WithChatModel(&echoModel{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")

	s = testSettings(t)
	_, err = New(context.Background(), s, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider config")
}

func TestNew_MissingAPIKeyOnlyWarns(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	s.Provider = &provider.Config{
		Backend: provider.BackendGroq,
		Groq:    provider.ProviderGroq{BaseURL: provider.DefaultGroqBaseURL, Model: provider.DefaultGroqModel},
		Tuning:  provider.SharedTuning{Temperature: provider.DefaultTemperature},
	}

	a, err := New(context.Background(), s, nil, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

// clearAppEnv blanks every variable SettingsFromEnv reads directly.
func clearAppEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VECTOR_STORE", "DOCCHAT_STORE_PATH", "DOCCHAT_COLLECTION", "DOCCHAT_DOCS_DIR",
		"DOCCHAT_TOP_K", "DOCCHAT_FALLBACK", "DOCCHAT_MAX_CONTEXT_TOKENS", "DOCCHAT_METRICS_ADDR",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY", "QDRANT_TLS",
		"EMBEDDING_PROVIDER", "EMBEDDING_DIMENSIONS", "MODEL_PROVIDER",
	} {
		t.Setenv(k, "")
	}
}

func TestSettingsFromEnv_Defaults(t *testing.T) {
	clearAppEnv(t)
	t.Setenv("HOME", t.TempDir())

	s, err := SettingsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, s.VectorStore)
	assert.Equal(t, DefaultCollection, s.Collection)
	assert.Equal(t, "./documentos", s.DocsDir)
	assert.Equal(t, 2, s.TopK)
	assert.Equal(t, "Não encontrei essa informação", s.Fallback)
	assert.Equal(t, 6000, s.MaxContextTokens)
	assert.Equal(t, 6334, s.Qdrant.Port)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".docchat", "vectors.db"), s.StorePath)
	assert.Equal(t, embedder.BackendLocal, s.Embedding.Backend)
	assert.Equal(t, provider.BackendGroq, s.Provider.Backend)
}

func TestSettingsFromEnv_Overrides(t *testing.T) {
	clearAppEnv(t)
	t.Setenv("VECTOR_STORE", "QDRANT")
	t.Setenv("DOCCHAT_TOP_K", "3")
	t.Setenv("DOCCHAT_COLLECTION", "outra")
	t.Setenv("QDRANT_TLS", "true")

	s, err := SettingsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, StoreQdrant, s.VectorStore)
	assert.Equal(t, 3, s.TopK)
	assert.Equal(t, "outra", s.Collection)
	assert.True(t, s.Qdrant.TLS)
	assert.Empty(t, s.StorePath)
}

func TestSettingsFromEnv_MalformedInt(t *testing.T) {
	clearAppEnv(t)
	t.Setenv("DOCCHAT_TOP_K", "two")

	_, err := SettingsFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCCHAT_TOP_K")
}

func TestRefreshReportsFailuresInFileOrder(t *testing.T) {
	t.Parallel()
	s := testSettings(t)
	writeFile(t, filepath.Join(s.DocsDir, "a.pdf"), "%PDF-1.4 broken")
	writeFile(t, filepath.Join(s.DocsDir, "b.txt"), "Férias de 30 dias.")
	a, _ := newTestApp(t, s)

	var out bytes.Buffer
	sh, err := a.Shell(strings.NewReader("1\n3\n"), &out)
	require.NoError(t, err)
	require.NoError(t, sh.Run(context.Background()))

	text := out.String()
	failed := strings.Index(text, "Erro ao ler a.pdf:")
	stored := strings.Index(text, "Memorizando: b.txt...")
	require.NotEqual(t, -1, failed, text)
	require.NotEqual(t, -1, stored, text)
	assert.Less(t, failed, stored)
	assert.Contains(t, text, "1 memorizados, 0 ignorados, 1 com erro")
}

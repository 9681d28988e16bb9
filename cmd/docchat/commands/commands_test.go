package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points every setting the commands read at a temp directory so
// tests never touch the user's home, .env or a remote service.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"DOCCHAT_CONFIG", "VECTOR_STORE", "DOCCHAT_COLLECTION", "DOCCHAT_TOP_K",
		"DOCCHAT_METRICS_ADDR", "EMBEDDING_PROVIDER", "EMBEDDING_DIMENSIONS",
		"MODEL_PROVIDER", "MODEL_NAME", "GROQ_API_KEY", "GROQ_BASE_URL", "GROQ_MODEL",
		"LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DOCCHAT_STORE_PATH", filepath.Join(dir, "vectors.db"))
	t.Setenv("DOCCHAT_DOCS_DIR", filepath.Join(dir, "documentos"))
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "docchat "), out)
	assert.Contains(t, out, "commit:")
}

func TestIngestCmd_DirFlag(t *testing.T) {
	dir := isolateEnv(t)
	docs := filepath.Join(dir, "manuais")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "ferias.txt"), []byte("Férias de 30 dias."), 0o644))

	out, err := execute(t, "", "ingest", "--dir", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "Memorizando: ferias.txt...")
	assert.Contains(t, out, "--- Ingestão concluída com sucesso! ---")
}

func TestIngestCmd_CreatesMissingDir(t *testing.T) {
	dir := isolateEnv(t)

	out, err := execute(t, "", "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "Pasta criada")
	assert.DirExists(t, filepath.Join(dir, "documentos"))
}

func TestRootCmd_MenuExit(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "3\n")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Atualizar Memória (Ler Arquivos)")
}

func TestChatCmd_EmptyCollectionFallback(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "Qual é a política de viagens?\nsair\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Não encontrei essa informação")
}

func TestRootCmd_InvalidStore(t *testing.T) {
	isolateEnv(t)
	t.Setenv("VECTOR_STORE", "chroma")

	_, err := execute(t, "3\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VECTOR_STORE")
}

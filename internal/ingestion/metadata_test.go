package ingestion

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeInfo is a minimal fs.FileInfo for metadata tests.
type fakeInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (f fakeInfo) Name() string       { return f.name }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (f fakeInfo) ModTime() time.Time { return f.modTime }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		format   string
		category string
	}{
		{name: "policy with accent", path: "documentos/Política_de_Férias.docx", format: "docx", category: "policy"},
		{name: "policy without accent", path: "politica-home-office.txt", format: "txt", category: "policy"},
		{name: "english policy", path: "travel policy.pdf", format: "pdf", category: "policy"},
		{name: "manual", path: "Manual do Colaborador.PDF", format: "pdf", category: "manual"},
		{name: "guide", path: "onboarding_guide.txt", format: "txt", category: "manual"},
		{name: "report", path: "relatorio_anual_2023.pdf", format: "pdf", category: "report"},
		{name: "contract", path: "contrato-fornecedor.docx", format: "docx", category: "contract"},
		{name: "faq", path: "FAQ.txt", format: "txt", category: "faq"},
		{name: "minutes", path: "ata_reuniao_2024-01-10.docx", format: "docx", category: "minutes"},
		{name: "keyword must be a whole word", path: "manualidades.txt", format: "txt", category: "general"},
		{name: "unknown", path: "historia.txt", format: "txt", category: "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := InferMetadata(tt.path, nil)
			assert.Equal(t, tt.format, m.Format)
			assert.Equal(t, tt.category, m.Category)
		})
	}
}

func TestInferMetadata_FileInfo(t *testing.T) {
	t.Parallel()

	mod := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("BRT", -3*60*60))
	m := InferMetadata("/data/documentos/historia.txt", fakeInfo{name: "historia.txt", size: 31, modTime: mod})

	assert.Equal(t, "historia.txt", m.Origin)
	assert.Equal(t, int64(31), m.SizeBytes)
	assert.Equal(t, map[string]string{
		MetaOrigin:    "historia.txt",
		MetaFormat:    "txt",
		MetaCategory:  "general",
		MetaSizeBytes: "31",
		MetaModified:  "2024-03-01T15:30:00Z",
	}, m.Map())
}

func TestInferredMetadata_MapOmitsUnknowns(t *testing.T) {
	t.Parallel()

	got := InferMetadata("notes.txt", nil).Map()
	assert.Equal(t, "notes.txt", got[MetaOrigin])
	assert.NotContains(t, got, MetaSizeBytes)
	assert.NotContains(t, got, MetaModified)
}

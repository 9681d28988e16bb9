package ingestion

import (
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Metadata keys written on every ingested document.
const (
	MetaOrigin    = "origin"
	MetaFormat    = "format"
	MetaSizeBytes = "size_bytes"
	MetaModified  = "modified"
	MetaCategory  = "category"
)

// InferredMetadata holds what can be learned about a document from its
// file name and file info alone, before its content is read.
type InferredMetadata struct {
	// Origin is the file name the document was read from.
	Origin string
	// Format is the lowercased extension without the dot (txt, pdf, docx).
	Format string
	// SizeBytes is the file size on disk.
	SizeBytes int64
	// Modified is the file modification time.
	Modified time.Time
	// Category classifies the document kind (policy, manual, report, contract,
	// faq, minutes, general) from keywords in the file name.
	Category string
}

// categoryKeywords maps file name words to a category label. Portuguese and
// English spellings are both accepted, with and without accents.
var categoryKeywords = map[string]string{
	"politica":    "policy",
	"política":    "policy",
	"politicas":   "policy",
	"políticas":   "policy",
	"policy":      "policy",
	"norma":       "policy",
	"normas":      "policy",
	"regulamento": "policy",
	"manual":      "manual",
	"guia":        "manual",
	"guide":       "manual",
	"handbook":    "manual",
	"tutorial":    "manual",
	"relatorio":   "report",
	"relatório":   "report",
	"report":      "report",
	"balanco":     "report",
	"balanço":     "report",
	"contrato":    "contract",
	"contract":    "contract",
	"acordo":      "contract",
	"faq":         "faq",
	"perguntas":   "faq",
	"ata":         "minutes",
	"minutes":     "minutes",
}

// InferMetadata returns best-effort metadata for the file at path. If the
// name matches no known keyword the category is "general".
func InferMetadata(path string, info fs.FileInfo) InferredMetadata {
	base := filepath.Base(path)
	m := InferredMetadata{
		Origin:   base,
		Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), "."),
		Category: "general",
	}
	if info != nil {
		m.SizeBytes = info.Size()
		m.Modified = info.ModTime().UTC()
	}

	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	for _, word := range nameWords(stem) {
		if cat, ok := categoryKeywords[word]; ok {
			m.Category = cat
			break
		}
	}
	return m
}

// Map renders the metadata as the string map stored next to the document.
func (m InferredMetadata) Map() map[string]string {
	out := map[string]string{
		MetaOrigin:   m.Origin,
		MetaFormat:   m.Format,
		MetaCategory: m.Category,
	}
	if m.SizeBytes > 0 {
		out[MetaSizeBytes] = strconv.FormatInt(m.SizeBytes, 10)
	}
	if !m.Modified.IsZero() {
		out[MetaModified] = m.Modified.Format(time.RFC3339)
	}
	return out
}

// nameWords splits a file stem on every non-letter, non-digit rune.
func nameWords(stem string) []string {
	return strings.FieldsFunc(stem, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

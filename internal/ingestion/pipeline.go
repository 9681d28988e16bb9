// Package ingestion implements the document ingestion pipeline behind the
// "refresh memory" action. It lists the supported files of a directory,
// extracts their text, embeds each file and upserts it into the vector
// store, one file at a time.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/54b3r/docchat/internal/extract"
	"github.com/54b3r/docchat/internal/metrics"
	"github.com/54b3r/docchat/internal/rag"
)

// DefaultDir is the documents directory used when none is configured.
const DefaultDir = "./documentos"

// FileError records a file that could not be extracted.
type FileError struct {
	// File is the base name of the file.
	File string
	// Err is the extraction error.
	Err error
}

func (e FileError) Error() string { return e.File + ": " + e.Err.Error() }

// Result summarises one ingestion run.
type Result struct {
	// Ingested lists the files stored in the collection, in processing order.
	Ingested []string
	// Skipped lists supported files whose extracted text was empty.
	Skipped []string
	// Failed lists files whose extraction failed.
	Failed []FileError
	// Created is true when the directory did not exist and was created.
	Created bool
}

// Count returns the number of files stored by the run.
func (r Result) Count() int { return len(r.Ingested) }

// Config holds the optional collaborators of a Pipeline.
type Config struct {
	// Extractor turns a file into text. Defaults to extract.New().
	Extractor *extract.Extractor

	// Metrics receives per-file outcomes. Defaults to a discarded registry.
	Metrics *metrics.Metrics

	// Logger receives per-file diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Pipeline orchestrates the list → extract → embed → upsert flow for a
// documents directory.
type Pipeline struct {
	// embedder converts document text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded documents.
	store rag.VectorStore

	// extractor dispatches on file extension.
	extractor *extract.Extractor

	// metrics records per-file outcomes.
	metrics *metrics.Metrics

	// log receives per-file diagnostics.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	p := &Pipeline{
		embedder:  embedder,
		store:     store,
		extractor: cfg.Extractor,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
	}
	if p.extractor == nil {
		p.extractor = extract.New()
	}
	if p.metrics == nil {
		p.metrics = metrics.Discard()
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p, nil
}

// Run ingests every supported file directly inside dir. A missing directory
// is created and the run ends with nothing ingested. Extraction failures are
// logged and recorded in Result.Failed without stopping the run; embedding
// and upsert failures abort it, leaving already-stored files in place.
// progress, when non-nil, receives one line per file in processing order:
// the file about to be stored, or the reason it could not be read.
func (p *Pipeline) Run(ctx context.Context, dir string, progress func(msg string)) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	start := time.Now()
	defer func() { p.metrics.IngestDurationSeconds.Observe(time.Since(start).Seconds()) }()

	var res Result

	files, err := p.listFiles(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("ingestion: create %s: %w", dir, err)
		}
		p.log.Info("documents directory created", slog.String("dir", dir))
		res.Created = true
		return res, nil
	}
	if err != nil {
		return res, err
	}
	p.log.Debug("scanning documents directory",
		slog.String("dir", dir),
		slog.Int("files", len(files)),
		slog.Any("extensions", p.extractor.Extensions()),
	)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := filepath.Base(path)

		text, err := p.extractor.Extract(path)
		if err != nil {
			p.log.Warn("skipping unreadable file", slog.String("file", name), slog.String("error", err.Error()))
			p.metrics.IngestFilesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
			res.Failed = append(res.Failed, FileError{File: name, Err: err})
			progress(fmt.Sprintf("Erro ao ler %s: %v", name, err))
			continue
		}
		if text == "" {
			p.log.Info("skipping file without text", slog.String("file", name))
			p.metrics.IngestFilesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
			res.Skipped = append(res.Skipped, name)
			continue
		}

		progress(fmt.Sprintf("Memorizando: %s...", name))

		if err := p.ingestFile(ctx, path, name, text); err != nil {
			return res, err
		}
		p.metrics.IngestFilesTotal.WithLabelValues(metrics.OutcomeIngested).Inc()
		res.Ingested = append(res.Ingested, name)
	}

	if n, err := p.store.Count(ctx); err == nil {
		p.metrics.DocumentsStored.Set(float64(n))
	}

	p.log.Info("ingestion finished",
		slog.String("dir", dir),
		slog.Int("ingested", len(res.Ingested)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// ingestFile embeds and upserts a single file as one document keyed by its name.
func (p *Pipeline) ingestFile(ctx context.Context, path, name, text string) error {
	var meta InferredMetadata
	if info, err := os.Stat(path); err == nil {
		meta = InferMetadata(path, info)
	} else {
		meta = InferMetadata(path, nil)
	}

	embeddings, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("ingestion: embedding failed for %s: %w", name, err)
	}
	if len(embeddings) != 1 {
		return fmt.Errorf("ingestion: embedder returned %d vectors for %s", len(embeddings), name)
	}

	doc := rag.Document{
		ID:       name,
		Content:  text,
		Source:   name,
		Metadata: meta.Map(),
	}
	if err := p.store.Upsert(ctx, []rag.Document{doc}, embeddings); err != nil {
		return fmt.Errorf("ingestion: upsert failed for %s: %w", name, err)
	}
	return nil
}

// listFiles returns the supported regular files directly inside dir, sorted
// by name. Symbolic links are followed to regular files; subdirectories are
// not descended into.
func (p *Pipeline) listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !p.extractor.Supports(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if e.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				p.log.Warn("skipping broken link", slog.String("file", e.Name()), slog.String("error", err.Error()))
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

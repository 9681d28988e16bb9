// Package rag defines the retrieval-augmented generation building blocks used
// by docchat: the Document unit, the VectorStore that persists a named
// collection of embedded documents, the Embedder that turns text into
// vectors, and the Retriever that combines both to fetch passages for a
// question. Concrete stores (SQLite, Qdrant) satisfy VectorStore so callers
// never depend on a specific backend.
package rag

import (
	"context"
	"errors"
)

// ErrNotFound is returned by VectorStore.Get when no document has the given ID.
var ErrNotFound = errors.New("rag: document not found")

// ErrDimensionMismatch is returned when an embedding does not have the vector
// size already established for the collection.
var ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")

// Document represents a unit of stored or retrieved knowledge. In docchat one
// Document holds the full text of one ingested file.
type Document struct {
	// ID is the unique identifier within the collection. Ingestion uses the
	// file name, so re-ingesting a file replaces its previous content.
	ID string

	// Content is the extracted text of the document.
	Content string

	// Source is the file name the document was read from.
	Source string

	// Metadata holds string key-value pairs such as origin, format and size_bytes.
	Metadata map[string]string

	// Score is the cosine similarity assigned during retrieval. Zero value
	// means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document
// embeddings inside one named collection. The collection is created by the
// constructor when it does not exist yet.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or replaces a batch of documents with their pre-computed
	// embeddings. embeddings[i] is the vector for docs[i]. A document whose ID
	// already exists is overwritten (last write wins).
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns at most topK documents ordered by descending similarity
	// to queryEmbedding. An empty collection yields an empty result.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Get returns the document with the given ID or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int, error)

	// Delete removes documents by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the documents most relevant to a question.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

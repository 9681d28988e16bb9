package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// defaultLocalDimensions is the vector size of the in-process embedder.
const defaultLocalDimensions = 384

// LocalEmbedder implements rag.Embedder without any external service. Each
// text becomes a hashed bag-of-words vector: tokens are lowercased, stopwords
// dropped, and every remaining token adds a sublinear term frequency to the
// bucket selected by its FNV-1a hash. Vectors are L2-normalised so cosine
// similarity reduces to lexical overlap.
//
// Unlike a TF-IDF model it needs no corpus-wide preparation step, so
// documents and questions embedded in different runs stay comparable.
type LocalEmbedder struct {
	// dimensions is the number of hash buckets.
	dimensions int
	// tokenPattern splits text into words, keeping accented letters and digits.
	tokenPattern *regexp.Regexp
	// stopwords are skipped before hashing.
	stopwords map[string]struct{}
}

// NewLocalEmbedder constructs a LocalEmbedder producing vectors of the given
// size. dimensions <= 0 selects the default of 384.
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = defaultLocalDimensions
	}
	return &LocalEmbedder{
		dimensions:   dimensions,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Dimensions returns the size of every vector produced by Embed.
func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

// Embed converts a batch of texts into their corresponding embeddings.
// Texts without any indexable token map to the zero vector.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embed(text string) []float32 {
	counts := make(map[string]int)
	for _, tok := range e.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		counts[tok]++
	}

	acc := make([]float64, e.dimensions)
	for tok, n := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		weight := 1 + math.Log(float64(n))
		// The top bit picks a sign so colliding tokens tend to cancel out.
		if sum>>63 == 1 {
			weight = -weight
		}
		acc[idx] += weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimensions)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// defaultStopwords lists common Portuguese and English function words.
func defaultStopwords() map[string]struct{} {
	words := []string{
		// Portuguese
		"a", "o", "as", "os", "um", "uma", "uns", "umas", "de", "do", "da", "dos", "das", "em", "no", "na",
		"nos", "nas", "por", "pelo", "pela", "para", "pra", "com", "sem", "e", "ou", "que", "se", "é",
		"foi", "ser", "ao", "aos", "à", "às", "como", "mais", "mas", "qual", "quais", "quando", "onde",
		"quem", "seu", "sua", "seus", "suas", "este", "esta", "isso", "isto", "esse", "essa",
		// English
		"an", "the", "and", "or", "but", "if", "then", "for", "to", "of", "in", "on", "at", "by", "with",
		"is", "are", "was", "were", "be", "been", "it", "this", "that", "from", "what", "when", "who",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

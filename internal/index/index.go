package index

import (
	"fmt"
	"math"
	"sort"
)

// Chunk is one indexed piece of a document, carrying the page it came from
// so answers can cite their source.
type Chunk struct {
	Page    int // zero-based
	Content string
}

// Hit is a retrieval result with its similarity score.
type Hit struct {
	Chunk Chunk
	Score float64
}

// Index is an in-memory vector index over the chunks of a single document.
// chunks[i] corresponds to embeddings[i]. The index is session-scoped and
// read-only after Build.
type Index struct {
	chunks     []Chunk
	embeddings [][]float32
	dim        int
}

// Build creates an index from chunks and their embeddings (same order).
func Build(chunks []Chunk, embeddings [][]float32) (*Index, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("cannot build index with no chunks")
	}
	dim := len(embeddings[0])
	for i, e := range embeddings {
		if len(e) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(e), dim)
		}
	}
	return &Index{chunks: chunks, embeddings: embeddings, dim: dim}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Search returns the top-k chunks by cosine similarity to the query vector,
// highest score first. k larger than the index is truncated.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("invalid k: %d", k)
	}

	hits := make([]Hit, 0, len(ix.chunks))
	for i, e := range ix.embeddings {
		hits = append(hits, Hit{Chunk: ix.chunks[i], Score: cosine(query, e)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

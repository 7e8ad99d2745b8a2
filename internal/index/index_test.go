package index

import (
	"math"
	"testing"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	chunks := []Chunk{
		{Page: 0, Content: "introduction"},
		{Page: 1, Content: "methods"},
		{Page: 2, Content: "results"},
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	ix, err := Build(chunks, embeddings)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func TestSearch_RanksByCosine(t *testing.T) {
	ix := buildTestIndex(t)

	hits, err := ix.Search([]float32{0.1, 0.9, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.Page != 1 {
		t.Errorf("expected page 1 first, got %d", hits[0].Chunk.Page)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("hits not sorted by score: %v", hits)
	}
}

func TestSearch_KTruncated(t *testing.T) {
	ix := buildTestIndex(t)
	hits, err := ix.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(hits))
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	ix := buildTestIndex(t)
	if _, err := ix.Search([]float32{1, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := ix.Search([]float32{1, 0, 0}, 0); err == nil {
		t.Error("expected invalid k error")
	}
}

func TestBuild_Validation(t *testing.T) {
	if _, err := Build(nil, nil); err == nil {
		t.Error("expected error for empty index")
	}
	if _, err := Build([]Chunk{{Page: 0}}, nil); err == nil {
		t.Error("expected error for count mismatch")
	}
	if _, err := Build(
		[]Chunk{{Page: 0}, {Page: 1}},
		[][]float32{{1, 0}, {1, 0, 0}},
	); err == nil {
		t.Error("expected error for ragged embeddings")
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("cosine of identical vectors = %v, want 1", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("cosine of orthogonal vectors = %v, want 0", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("cosine with zero vector = %v, want 0", got)
	}
}

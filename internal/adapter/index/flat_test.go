package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docqa/internal/domain"
)

func newTestIndex(t *testing.T, dim int) *FlatIndex {
	t.Helper()
	idx, err := NewFlatIndex(filepath.Join(t.TempDir(), "vectors.json"), dim)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestFlatIndexAddRejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 3)

	err := idx.Add("c1", []float32{1, 2})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Count() != 0 {
		t.Errorf("rejected vector must not be inserted, count=%d", idx.Count())
	}
}

func TestFlatIndexAddRejectsDuplicateID(t *testing.T) {
	idx := newTestIndex(t, 2)

	if err := idx.Add("c1", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	err := idx.Add("c1", []float32{0, 1})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if idx.Count() != 1 {
		t.Errorf("count = %d, want 1", idx.Count())
	}
}

func TestFlatIndexSearchEmpty(t *testing.T) {
	idx := newTestIndex(t, 2)

	hits, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("empty index must return no hits, got %d", len(hits))
	}
}

func TestFlatIndexSearchRanking(t *testing.T) {
	idx := newTestIndex(t, 1)

	// Scalar vectors at known distances 0.1, 0.3, 0.9 from the query
	// point 0 (squared: 0.01, 0.09, 0.81). Inserted out of order to
	// prove the ordering comes from distance, not insertion.
	if err := idx.Add("far", []float32{0.9}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("near", []float32{0.1}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("mid", []float32{0.3}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search([]float32{0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("top_k=2 must return 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "near" || hits[1].ID != "mid" {
		t.Errorf("got order [%s %s], want [near mid]", hits[0].ID, hits[1].ID)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Errorf("distances not ascending: %f > %f", hits[0].Distance, hits[1].Distance)
	}
}

func TestFlatIndexSearchTieBreakByInsertionOrder(t *testing.T) {
	idx := newTestIndex(t, 2)

	// Both vectors sit at the same distance from the query.
	if err := idx.Add("first", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("second", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].ID != "first" || hits[1].ID != "second" {
		t.Errorf("equal distances must keep insertion order, got [%s %s]", hits[0].ID, hits[1].ID)
	}
}

func TestFlatIndexSearchKLargerThanIndex(t *testing.T) {
	idx := newTestIndex(t, 1)
	if err := idx.Add("only", []float32{1}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search([]float32{0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
}

func TestFlatIndexRemove(t *testing.T) {
	idx := newTestIndex(t, 1)
	for _, id := range []string{"a", "b", "c"} {
		if err := idx.Add(id, []float32{1}); err != nil {
			t.Fatal(err)
		}
	}

	if err := idx.Remove([]string{"b", "missing"}); err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 2 {
		t.Fatalf("count = %d, want 2", idx.Count())
	}

	// Removed ids can be re-added; remaining ids still conflict.
	if err := idx.Add("b", []float32{1}); err != nil {
		t.Errorf("re-adding removed id failed: %v", err)
	}
	if err := idx.Add("a", []float32{1}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for surviving id, got %v", err)
	}
}

func TestFlatIndexPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")

	idx, err := NewFlatIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("c1", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("c2", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFlatIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := reopened.Load(); err != nil {
		t.Fatal(err)
	}
	if reopened.Count() != 2 {
		t.Fatalf("reopened count = %d, want 2", reopened.Count())
	}

	hits, err := reopened.Search([]float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "c1" {
		t.Errorf("reopened search returned %+v, want c1 first", hits)
	}
}

func TestFlatIndexLoadMissingFileInitializesEmpty(t *testing.T) {
	idx, err := NewFlatIndex(filepath.Join(t.TempDir(), "absent.json"), 4)
	if err != nil {
		t.Fatal(err)
	}

	if idx.Loaded() {
		t.Error("index must not report loaded before Load")
	}
	if err := idx.Load(); err != nil {
		t.Fatalf("load on missing store must not fail: %v", err)
	}
	if !idx.Loaded() {
		t.Error("index must report loaded after Load")
	}
	if idx.Count() != 0 {
		t.Errorf("count = %d, want 0", idx.Count())
	}
}

func TestFlatIndexLoadCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := NewFlatIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(); !errors.Is(err, domain.ErrIndexCorruption) {
		t.Fatalf("expected ErrIndexCorruption, got %v", err)
	}
}

func TestFlatIndexLoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")

	idx, err := NewFlatIndex(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("c1", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Persist(); err != nil {
		t.Fatal(err)
	}

	other, err := NewFlatIndex(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Load(); !errors.Is(err, domain.ErrIndexCorruption) {
		t.Fatalf("expected ErrIndexCorruption on dimension change, got %v", err)
	}
}

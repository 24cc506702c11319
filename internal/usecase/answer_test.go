package usecase

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/index"
	"docqa/internal/adapter/memstore"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// countingLLM records calls and plays back a canned answer.
type countingLLM struct {
	calls      int
	lastSystem string
	lastUser   string
	response   string
	err        error
}

func (l *countingLLM) Generate(prompt string) (string, error) {
	return l.GenerateWithSystem("", prompt)
}

func (l *countingLLM) GenerateWithSystem(systemPrompt, userPrompt string) (string, error) {
	l.calls++
	l.lastSystem = systemPrompt
	l.lastUser = userPrompt
	if l.err != nil {
		return "", l.err
	}
	return l.response, nil
}

func (l *countingLLM) ModelName() string { return "counting" }

// fixedEmbedder returns one preset vector per call, regardless of the
// input text, so tests control distances exactly.
type fixedEmbedder struct {
	dimension int
	vector    []float32
}

func (e *fixedEmbedder) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func (e *fixedEmbedder) Dimension() int    { return e.dimension }
func (e *fixedEmbedder) ModelName() string { return "fixed" }

func newTestIndex(t *testing.T, dimension int) *index.FlatIndex {
	t.Helper()
	idx, err := index.NewFlatIndex(filepath.Join(t.TempDir(), "vectors.json"), dimension)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	if err := idx.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return idx
}

// seedChunk adds a chunk, with a vector placed at the given offset
// along the first axis, so its distance to the zero query is offset².
func seedChunk(t *testing.T, idx *index.FlatIndex, meta port.MetadataStore, docID string, ordinal int, text string, offset float32) {
	t.Helper()
	vec := make([]float32, idx.Dimension())
	vec[0] = offset
	id := chunkID(docID, ordinal)
	if err := idx.Add(id, vec); err != nil {
		t.Fatalf("Add %s: %v", id, err)
	}
	err := meta.PutChunks([]domain.Chunk{{ID: id, DocID: docID, Ordinal: ordinal, Text: text}})
	if err != nil {
		t.Fatalf("PutChunks %s: %v", id, err)
	}
}

func newTestAnswerer(t *testing.T, idx *index.FlatIndex, meta port.MetadataStore, llm port.LLM, opts AnswererOptions) *Answerer {
	t.Helper()
	emb := &fixedEmbedder{dimension: idx.Dimension(), vector: make([]float32, idx.Dimension())}
	a, err := NewAnswerer(emb, idx, meta, llm, nil, opts)
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}
	return a
}

func TestAnswerEmptyQuestion(t *testing.T) {
	idx := newTestIndex(t, 4)
	a := newTestAnswerer(t, idx, memstore.NewMemoryStore(), &countingLLM{}, AnswererOptions{})

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := a.Answer(q, 0); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("question %q: expected ErrInvalidQuery, got %v", q, err)
		}
	}
}

func TestAnswerEmptyIndexNeverCallsGenerator(t *testing.T) {
	idx := newTestIndex(t, 4)
	llm := &countingLLM{response: "should not appear"}
	a := newTestAnswerer(t, idx, memstore.NewMemoryStore(), llm, AnswererOptions{})

	answer, err := a.Answer("what is in the corpus?", 0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if llm.calls != 0 {
		t.Fatalf("generator called %d times on empty index", llm.calls)
	}
	if answer.Confidence != domain.ConfidenceNone {
		t.Errorf("expected confidence none, got %s", answer.Confidence)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("expected no sources, got %v", answer.Sources)
	}
	if answer.Text != noDocumentsAnswer {
		t.Errorf("unexpected answer text: %q", answer.Text)
	}
}

func TestAnswerGroundedGeneration(t *testing.T) {
	idx := newTestIndex(t, 4)
	meta := memstore.NewMemoryStore()
	seedChunk(t, idx, meta, "doc_a", 0, "alpha facts", 0.1)
	seedChunk(t, idx, meta, "doc_b", 0, "beta facts", 0.9)
	seedChunk(t, idx, meta, "doc_a", 1, "more alpha", 0.3)

	llm := &countingLLM{response: "Alpha is covered."}
	a := newTestAnswerer(t, idx, meta, llm, AnswererOptions{TopK: 2})

	answer, err := a.Answer("tell me about alpha", 0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one generation call, got %d", llm.calls)
	}
	if answer.Text != "Alpha is covered." {
		t.Errorf("unexpected answer text: %q", answer.Text)
	}

	// topK=2 retains the two nearest chunks, both from doc_a.
	if len(answer.Sources) != 1 || answer.Sources[0] != "doc_a" {
		t.Errorf("expected sources [doc_a], got %v", answer.Sources)
	}
	if !strings.Contains(llm.lastSystem, "STRICT RULES") {
		t.Error("system prompt missing grounding rules")
	}
	if !strings.Contains(llm.lastUser, "[Document doc_a]\nalpha facts") {
		t.Errorf("context missing best chunk:\n%s", llm.lastUser)
	}
	if !strings.Contains(llm.lastUser, "Question: tell me about alpha") {
		t.Errorf("prompt missing question:\n%s", llm.lastUser)
	}
	if strings.Contains(llm.lastUser, "beta facts") {
		t.Errorf("context includes chunk beyond topK:\n%s", llm.lastUser)
	}

	// The best chunk's text precedes the weaker one.
	if strings.Index(llm.lastUser, "alpha facts") > strings.Index(llm.lastUser, "more alpha") {
		t.Error("context blocks not in ascending-distance order")
	}
}

func TestAnswerConfidenceTiers(t *testing.T) {
	opts := AnswererOptions{TopK: 1, HighThreshold: 0.25, MediumThreshold: 1.0}
	tests := []struct {
		name   string
		offset float32
		want   domain.Confidence
	}{
		{"high", 0.1, domain.ConfidenceHigh},     // distance 0.01
		{"medium", 0.7, domain.ConfidenceMedium}, // distance 0.49
		{"low", 1.5, domain.ConfidenceLow},       // distance 2.25
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			idx := newTestIndex(t, 4)
			meta := memstore.NewMemoryStore()
			seedChunk(t, idx, meta, "doc_a", 0, "text", tc.offset)
			a := newTestAnswerer(t, idx, meta, &countingLLM{response: "ok"}, opts)

			answer, err := a.Answer("question", 0)
			if err != nil {
				t.Fatalf("Answer: %v", err)
			}
			if answer.Confidence != tc.want {
				t.Errorf("expected confidence %s, got %s", tc.want, answer.Confidence)
			}
		})
	}
}

func TestAnswerSkipsUnresolvableHits(t *testing.T) {
	idx := newTestIndex(t, 4)
	meta := memstore.NewMemoryStore()
	seedChunk(t, idx, meta, "doc_a", 0, "resolvable", 0.5)

	// A vector with no chunk record behind it.
	orphan := make([]float32, 4)
	orphan[0] = 0.1
	if err := idx.Add("doc_gone_chunk_0", orphan); err != nil {
		t.Fatalf("Add orphan: %v", err)
	}

	llm := &countingLLM{response: "ok"}
	a := newTestAnswerer(t, idx, meta, llm, AnswererOptions{TopK: 5})

	answer, err := a.Answer("question", 0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if strings.Contains(llm.lastUser, "doc_gone") {
		t.Errorf("orphan hit leaked into context:\n%s", llm.lastUser)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "doc_a" {
		t.Errorf("expected sources [doc_a], got %v", answer.Sources)
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	idx := newTestIndex(t, 4)
	meta := memstore.NewMemoryStore()
	seedChunk(t, idx, meta, "doc_a", 0, "text", 0.1)

	llm := &countingLLM{err: domain.ErrCollaboratorUnavailable}
	a := newTestAnswerer(t, idx, meta, llm, AnswererOptions{})

	_, err := a.Answer("question", 0)
	if !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Fatalf("expected ErrCollaboratorUnavailable, got %v", err)
	}
}

func TestAnswerContextCap(t *testing.T) {
	idx := newTestIndex(t, 4)
	meta := memstore.NewMemoryStore()
	seedChunk(t, idx, meta, "doc_a", 0, strings.Repeat("a", 60), 0.1)
	seedChunk(t, idx, meta, "doc_b", 0, strings.Repeat("b", 60), 0.5)

	llm := &countingLLM{response: "ok"}
	emb := &fixedEmbedder{dimension: 4, vector: make([]float32, 4)}
	a, err := NewAnswerer(emb, idx, meta, llm, nil, AnswererOptions{TopK: 5, MaxContextChars: 100})
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	answer, err := a.Answer("question", 0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(llm.lastUser, "doc_a") {
		t.Error("best chunk missing from capped context")
	}
	if strings.Contains(llm.lastUser, "doc_b") {
		t.Error("capped context still contains the weaker chunk")
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "doc_a" {
		t.Errorf("sources should reflect retained context only, got %v", answer.Sources)
	}
}

func TestAnswerContextTruncationKeepsValidUTF8(t *testing.T) {
	idx := newTestIndex(t, 4)
	meta := memstore.NewMemoryStore()
	// Multi-byte runes only, so any byte-offset cut would land inside
	// a rune.
	seedChunk(t, idx, meta, "doc_a", 0, strings.Repeat("日本語テキスト", 20), 0.1)

	llm := &countingLLM{response: "ok"}
	emb := &fixedEmbedder{dimension: 4, vector: make([]float32, 4)}
	// 49 bytes lands mid-rune: 17 bytes of document tag plus 32 bytes
	// into the 3-byte runes.
	a, err := NewAnswerer(emb, idx, meta, llm, nil, AnswererOptions{TopK: 1, MaxContextChars: 49})
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	if _, err := a.Answer("question", 0); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !utf8.ValidString(llm.lastUser) {
		t.Fatal("truncated context is not valid UTF-8")
	}
	if !strings.Contains(llm.lastUser, "[Document doc_a]") {
		t.Errorf("best chunk missing from truncated context:\n%s", llm.lastUser)
	}
}

func TestAnswerCacheHit(t *testing.T) {
	idx := newTestIndex(t, 4)
	meta := memstore.NewMemoryStore()
	seedChunk(t, idx, meta, "doc_a", 0, "text", 0.1)

	llm := &countingLLM{response: "cached answer"}
	emb := &fixedEmbedder{dimension: 4, vector: make([]float32, 4)}
	a, err := NewAnswerer(emb, idx, meta, llm, cache.NewAnswerCache(10, time.Minute), AnswererOptions{})
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	first, err := a.Answer("question", 0)
	if err != nil {
		t.Fatalf("first Answer: %v", err)
	}
	second, err := a.Answer("question", 0)
	if err != nil {
		t.Fatalf("second Answer: %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one generation call across repeats, got %d", llm.calls)
	}
	if first.Text != second.Text {
		t.Errorf("cached answer differs: %q vs %q", first.Text, second.Text)
	}
}

func TestAnswerCacheInvalidatedByCorpusChanges(t *testing.T) {
	idx := newTestIndex(t, 8)
	meta := memstore.NewMemoryStore()
	registerDoc(t, meta, "doc_x")

	ch, err := chunker.NewWindowChunker(50, 10)
	if err != nil {
		t.Fatalf("NewWindowChunker: %v", err)
	}
	emb := embedding.NewMockEmbedder(8)
	indexer, err := NewIndexer(ch, emb, idx, meta)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	answerCache := cache.NewAnswerCache(10, time.Minute)
	indexer.SetInvalidator(answerCache)

	llm := &countingLLM{response: "It is in the red binder."}
	a, err := NewAnswerer(emb, idx, meta, llm, answerCache, AnswererOptions{TopK: 3})
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	if _, err := indexer.IndexDocument("doc_x", strings.Repeat("where things are kept ", 5)); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	answer, err := a.Answer("where is it?", 0)
	if err != nil {
		t.Fatalf("first Answer: %v", err)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "doc_x" {
		t.Fatalf("expected sources [doc_x], got %v", answer.Sources)
	}

	// Removing the document empties the index; the earlier cached
	// answer must not survive the corpus change.
	if err := indexer.RemoveDocument("doc_x"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	if idx.Count() != 0 {
		t.Fatalf("expected empty index after removal, got %d vectors", idx.Count())
	}

	answer, err = a.Answer("where is it?", 0)
	if err != nil {
		t.Fatalf("second Answer: %v", err)
	}
	if answer.Text != noDocumentsAnswer || answer.Confidence != domain.ConfidenceNone || len(answer.Sources) != 0 {
		t.Fatalf("stale cached answer served after removal: %+v", answer)
	}
	if llm.calls != 1 {
		t.Fatalf("generator called %d times, empty index must not invoke it", llm.calls)
	}

	// Re-indexing also invalidates: the next answer is generated
	// against the new corpus, not replayed from the cache.
	registerDoc(t, meta, "doc_y")
	if _, err := indexer.IndexDocument("doc_y", strings.Repeat("fresh content here ", 5)); err != nil {
		t.Fatalf("IndexDocument doc_y: %v", err)
	}
	answer, err = a.Answer("where is it?", 0)
	if err != nil {
		t.Fatalf("third Answer: %v", err)
	}
	if llm.calls != 2 {
		t.Fatalf("expected fresh generation after re-index, got %d calls", llm.calls)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "doc_y" {
		t.Fatalf("expected sources [doc_y], got %v", answer.Sources)
	}
}

func TestHealth(t *testing.T) {
	idx := newTestIndex(t, 4)
	meta := memstore.NewMemoryStore()
	seedChunk(t, idx, meta, "doc_a", 0, "text", 0.1)
	if err := meta.PutDocument(domain.Document{ID: "doc_a", Status: domain.StatusIndexed}); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}

	report, err := Health(idx, meta)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.VectorCount != 1 || report.DocumentCount != 1 || !report.IndexLoaded {
		t.Fatalf("unexpected report: %+v", report)
	}
}

package domain

import "time"

// DocumentStatus tracks a document through the indexing lifecycle.
type DocumentStatus string

const (
	StatusPending DocumentStatus = "pending"
	StatusIndexed DocumentStatus = "indexed"
	StatusFailed  DocumentStatus = "failed"
)

// Document is the metadata record for an uploaded document. It is
// immutable after indexing except for the status field.
type Document struct {
	ID        string
	Filename  string
	Status    DocumentStatus
	CreatedAt time.Time
	IndexedAt time.Time // zero until the document reaches StatusIndexed
}

// Span is a half-open [Start, End) window of rune offsets into the
// cleaned document text, as emitted by the chunker.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunk is the unit of embedding and retrieval: one bounded,
// overlapping span of a document, with its position in the corpus.
type Chunk struct {
	ID      string
	DocID   string
	Ordinal int // 0-based position within the document
	Start   int // rune offset into the cleaned text, inclusive
	End     int // rune offset, exclusive
	Text    string
}

// Confidence is a coarse tier derived from the best retrieval distance.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Answer is the result of a grounded question-answering request.
type Answer struct {
	Text       string     `json:"answer"`
	Sources    []string   `json:"sources"`
	Confidence Confidence `json:"confidence"`
}

// RetrievedChunk pairs a resolved chunk with its search distance
// (lower is more similar).
type RetrievedChunk struct {
	Chunk    Chunk
	Distance float64
}

// HealthReport describes the state of the answering core.
type HealthReport struct {
	VectorCount   int  `json:"vector_count"`
	DocumentCount int  `json:"document_count"`
	IndexLoaded   bool `json:"index_loaded"`
}

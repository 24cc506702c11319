// Package extract implements the text extraction boundary. The
// answering core consumes extractors and never sees raw bytes itself.
// Plain text and markdown are handled here; richer formats (PDF, OCR)
// plug into the same port.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"docqa/internal/adapter/textproc"
	"docqa/internal/domain"
)

// PlainTextExtractor extracts and normalizes UTF-8 text payloads.
type PlainTextExtractor struct {
	maxSize int64
}

// NewPlainTextExtractor creates an extractor that rejects payloads
// larger than maxSize bytes (0 disables the limit).
func NewPlainTextExtractor(maxSize int64) *PlainTextExtractor {
	return &PlainTextExtractor{maxSize: maxSize}
}

// Extract validates the payload and returns cleaned text. Corrupt or
// unsupported input fails with an extraction error; other documents
// are unaffected.
func (e *PlainTextExtractor) Extract(raw []byte, mimeHint string) (string, error) {
	if e.maxSize > 0 && int64(len(raw)) > e.maxSize {
		return "", fmt.Errorf("%w: payload of %d bytes exceeds limit of %d", domain.ErrExtraction, len(raw), e.maxSize)
	}
	if mimeHint != "" && !supportedMime(mimeHint) {
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrExtraction, mimeHint)
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("%w: payload contains binary data", domain.ErrExtraction)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", domain.ErrExtraction)
	}

	text := textproc.RemovePageNumbers(string(raw))
	return textproc.CleanText(text), nil
}

func supportedMime(hint string) bool {
	hint = strings.ToLower(hint)
	return strings.HasPrefix(hint, "text/") ||
		hint == "application/markdown" ||
		hint == "application/octet-stream"
}

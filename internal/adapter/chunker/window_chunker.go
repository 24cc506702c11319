package chunker

import (
	"fmt"

	"docqa/internal/domain"
)

// WindowChunker splits text into fixed-size overlapping character
// windows. The walk is deterministic: each span is size runes long
// (or the remainder at document end) and the cursor advances by
// size - overlap, so consecutive spans of the same document overlap by
// exactly the configured overlap except at the end.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates 0 < overlap < size and returns a chunker.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 || overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk size %d and overlap %d must satisfy 0 < overlap < size",
			domain.ErrConfiguration, size, overlap)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk emits the ordered span sequence for text. Offsets are rune
// offsets into text. Empty input yields no spans and no error; input
// shorter than the window yields exactly one span covering the whole
// input. The final span may be shorter than the window and is still
// emitted.
func (c *WindowChunker) Chunk(text string) ([]domain.Span, error) {
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var spans []domain.Span
	for start := 0; ; start += step {
		end := start + c.size
		if end >= len(runes) {
			spans = append(spans, domain.Span{
				Start: start,
				End:   len(runes),
				Text:  string(runes[start:]),
			})
			break
		}
		spans = append(spans, domain.Span{
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
	}

	return spans, nil
}

// Size returns the configured window size in runes.
func (c *WindowChunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes.
func (c *WindowChunker) Overlap() int { return c.overlap }

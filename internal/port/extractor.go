package port

// Extractor turns raw document bytes into normalized text. The
// answering core never sees raw bytes outside this boundary.
type Extractor interface {
	// Extract returns cleaned text for the given payload, or an
	// extraction error on corrupt or unsupported input.
	Extract(raw []byte, mimeHint string) (string, error)
}

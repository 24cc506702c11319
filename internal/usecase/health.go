package usecase

import (
	"fmt"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// loadable is satisfied by indexes that can report whether their
// on-disk snapshot has been loaded.
type loadable interface {
	Loaded() bool
}

// Health summarizes the state of the answering core for status
// commands and smoke checks.
func Health(index port.VectorIndex, meta port.MetadataStore) (domain.HealthReport, error) {
	docs, err := meta.ListDocuments()
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("failed to list documents: %w", err)
	}

	loaded := true
	if l, ok := index.(loadable); ok {
		loaded = l.Loaded()
	}

	return domain.HealthReport{
		VectorCount:   index.Count(),
		DocumentCount: len(docs),
		IndexLoaded:   loaded,
	}, nil
}

package usecase

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"docqa/internal/adapter/cache"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// groundingPrompt pins the generator to the retrieved context so the
// answer never draws on the model's own knowledge.
const groundingPrompt = `You are a question-answering system.

STRICT RULES (must follow):
1. Use ONLY the exact information explicitly present in the provided context.
2. DO NOT invent or assume lecture numbers, slide numbers, section names, or document structure.
3. DO NOT reference lectures, slides, or sections unless they are explicitly written in the context.
4. If the answer is not clearly stated in the context, respond with: "Not found in the document."
5. Do NOT add explanations, citations, or metadata that are not present verbatim in the context.

Your answer must be grounded strictly in the text.`

// noDocumentsAnswer is returned when the index holds nothing to search.
const noDocumentsAnswer = "No documents have been indexed yet, so there is nothing to answer from."

// Answerer orchestrates a grounded question-answering request: embed
// the question, search the index, resolve hits to chunk text, and ask
// the generator to answer from that context alone.
type Answerer struct {
	embedder port.Embedder
	index    port.VectorIndex
	meta     port.MetadataStore
	llm      port.LLM
	cache    *cache.AnswerCache // nil disables caching

	defaultTopK     int
	maxContextChars int
	highThreshold   float64
	mediumThreshold float64
}

// AnswererOptions tune retrieval breadth, context size and the
// distance thresholds behind the confidence tiers.
type AnswererOptions struct {
	TopK            int
	MaxContextChars int
	HighThreshold   float64
	MediumThreshold float64
}

// NewAnswerer wires the orchestrator. The embedder and index must
// agree on vector dimensionality; that is a deployment mistake, so it
// fails construction rather than every query.
func NewAnswerer(embedder port.Embedder, index port.VectorIndex, meta port.MetadataStore, llm port.LLM, answerCache *cache.AnswerCache, opts AnswererOptions) (*Answerer, error) {
	if embedder.Dimension() != index.Dimension() {
		return nil, fmt.Errorf("%w: embedder produces %d-dimensional vectors, index expects %d",
			domain.ErrConfiguration, embedder.Dimension(), index.Dimension())
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 8000
	}
	if opts.HighThreshold <= 0 {
		opts.HighThreshold = 0.8
	}
	if opts.MediumThreshold <= opts.HighThreshold {
		opts.MediumThreshold = opts.HighThreshold * 2
	}
	return &Answerer{
		embedder:        embedder,
		index:           index,
		meta:            meta,
		llm:             llm,
		cache:           answerCache,
		defaultTopK:     opts.TopK,
		maxContextChars: opts.MaxContextChars,
		highThreshold:   opts.HighThreshold,
		mediumThreshold: opts.MediumThreshold,
	}, nil
}

// Answer answers question from the indexed corpus. topK <= 0 falls
// back to the configured default.
func (a *Answerer) Answer(question string, topK int) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidQuery)
	}
	if topK <= 0 {
		topK = a.defaultTopK
	}

	// Nothing indexed means no grounding is possible; the generator is
	// never consulted in that state. This guard runs before the cache
	// so a stale entry can never outrank an emptied corpus.
	if a.index.Count() == 0 {
		return domain.Answer{
			Text:       noDocumentsAnswer,
			Sources:    []string{},
			Confidence: domain.ConfidenceNone,
		}, nil
	}

	if a.cache != nil {
		if answer, ok := a.cache.Get(question, topK); ok {
			logger.Debug("answer cache hit")
			return answer, nil
		}
	}

	retrieved, err := a.retrieve(question, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	if len(retrieved) == 0 {
		return domain.Answer{
			Text:       noDocumentsAnswer,
			Sources:    []string{},
			Confidence: domain.ConfidenceNone,
		}, nil
	}

	context, sources := a.assembleContext(retrieved)

	userPrompt := fmt.Sprintf("Context from documents:\n%s\n\nQuestion: %s\n\nAnswer:", context, question)
	text, err := a.llm.GenerateWithSystem(groundingPrompt, userPrompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("answer generation failed: %w", err)
	}

	answer := domain.Answer{
		Text:       strings.TrimSpace(text),
		Sources:    sources,
		Confidence: a.confidence(retrieved[0].Distance),
	}
	if a.cache != nil {
		a.cache.Put(question, topK, answer)
	}
	return answer, nil
}

// retrieve embeds the question, searches the index and resolves each
// hit to its stored chunk. Hits whose metadata is gone are skipped
// with a warning rather than failing the whole query.
func (a *Answerer) retrieve(question string, topK int) ([]domain.RetrievedChunk, error) {
	vectors, err := a.embedder.Embed([]string{question})
	if err != nil {
		return nil, fmt.Errorf("question embedding failed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one question", domain.ErrCollaboratorUnavailable, len(vectors))
	}

	hits, err := a.index.Search(vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	retrieved := make([]domain.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, err := a.meta.GetChunk(hit.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("vector %s has no chunk metadata, skipping", hit.ID)
				continue
			}
			return nil, fmt.Errorf("chunk lookup failed for %s: %w", hit.ID, err)
		}
		retrieved = append(retrieved, domain.RetrievedChunk{Chunk: chunk, Distance: hit.Distance})
	}
	return retrieved, nil
}

// assembleContext builds the prompt context from best to worst hit,
// stopping before the character cap is exceeded, and returns the
// document IDs that actually made it in, de-duplicated in rank order.
func (a *Answerer) assembleContext(retrieved []domain.RetrievedChunk) (string, []string) {
	var b strings.Builder
	sources := make([]string, 0, len(retrieved))
	seen := make(map[string]bool, len(retrieved))

	for i, rc := range retrieved {
		block := fmt.Sprintf("[Document %s]\n%s", rc.Chunk.DocID, rc.Chunk.Text)
		// The best hit is always included, truncated if it alone
		// exceeds the cap. The cut backs up to a rune boundary so
		// the generator never sees invalid UTF-8.
		if i == 0 && len(block) > a.maxContextChars {
			cut := a.maxContextChars
			for cut > 0 && !utf8.RuneStart(block[cut]) {
				cut--
			}
			block = block[:cut]
		}
		extra := len(block)
		if b.Len() > 0 {
			extra += 2
		}
		if i > 0 && b.Len()+extra > a.maxContextChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		if !seen[rc.Chunk.DocID] {
			seen[rc.Chunk.DocID] = true
			sources = append(sources, rc.Chunk.DocID)
		}
	}
	return b.String(), sources
}

// confidence maps the best (smallest) retrieval distance to a tier.
func (a *Answerer) confidence(bestDistance float64) domain.Confidence {
	switch {
	case bestDistance < a.highThreshold:
		return domain.ConfidenceHigh
	case bestDistance < a.mediumThreshold:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

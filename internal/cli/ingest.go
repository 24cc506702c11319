package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/extract"
	"docqa/internal/adapter/fs"
	"docqa/internal/adapter/textproc"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

var ingestRebuild bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index documents for question answering",
	Long: `Index text documents in the specified directory so questions can be
answered from them. Vectors and metadata are stored in .docqa within
the data directory.

Examples:
  docqa ingest .                # Index current directory
  docqa ingest ./docs           # Index a specific directory
  docqa ingest --rebuild ./docs # Discard the index and re-ingest`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "discard the existing index before ingesting")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	dataDir := GetRootDir()

	if ingestRebuild {
		if err := clearIndex(dataDir); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
		fmt.Println("Existing index cleared.")
	}

	st, err := openStore(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	if err := checkManifest(st, embedder, cfg); err != nil {
		return err
	}

	idx, err := openIndex(dataDir, embedder.Dimension())
	if err != nil {
		return err
	}

	chk, err := chunker.NewWindowChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	indexer, err := usecase.NewIndexer(chk, embedder, idx, st)
	if err != nil {
		return err
	}

	extractor := extract.NewPlainTextExtractor(cfg.Ingest.MaxFileSize)
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	fmt.Printf("Scanning %s...\n", path)
	files, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No matching documents found.")
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var indexed, skipped, failed, chunks int
	var warnings []string
	for _, file := range files {
		rel, relErr := filepath.Rel(path, file.Path)
		if relErr != nil {
			rel = file.Path
		}

		n, err := ingestFile(indexer, extractor, st, cfg.Ingest.MinTextLength, file.Path, rel)
		switch {
		case err == nil && n < 0:
			skipped++
		case err == nil:
			indexed++
			chunks += n
		default:
			failed++
			warnings = append(warnings, fmt.Sprintf("%s: %v", rel, err))
		}
		bar.Add(1)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Documents indexed: %d\n", indexed)
	fmt.Printf("  Documents skipped: %d\n", skipped)
	fmt.Printf("  Documents failed:  %d\n", failed)
	fmt.Printf("  Chunks created:    %d\n", chunks)

	if len(warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nIndex stored in: %s\n", filepath.Join(dataDir, ".docqa"))
	return nil
}

// ingestFile extracts, registers and indexes one file. Returns the
// chunk count, or -1 when the file was skipped as not meaningful.
func ingestFile(indexer *usecase.Indexer, extractor port.Extractor, meta port.MetadataStore, minTextLength int, absPath, relPath string) (int, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read failed: %w", err)
	}

	docID := newDocumentID()
	doc := domain.Document{
		ID:        docID,
		Filename:  relPath,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := meta.PutDocument(doc); err != nil {
		return 0, fmt.Errorf("failed to register document: %w", err)
	}

	text, err := extractor.Extract(raw, mimeFromPath(absPath))
	if err != nil {
		if serr := meta.SetDocumentStatus(docID, domain.StatusFailed); serr != nil {
			logger.Warn("failed to mark document %s failed: %v", docID, serr)
		}
		return 0, err
	}

	// Too little meaningful text is a skip, not a failure; drop the
	// registration so status does not accumulate empty documents.
	text, ok := textproc.MeaningfulText(text, minTextLength)
	if !ok {
		logger.Debug("skipping %s: not enough meaningful text", relPath)
		if derr := meta.DeleteDocument(docID); derr != nil {
			logger.Warn("failed to drop skipped document %s: %v", docID, derr)
		}
		return -1, nil
	}

	return indexer.IndexDocument(docID, text)
}

// newDocumentID generates a fresh document identifier.
func newDocumentID() string {
	id := uuid.New()
	return "doc_" + hex.EncodeToString(id[:6])
}

// mimeFromPath maps a file extension to the extractor's content-type
// hint. Unknown extensions get no hint and are validated by content.
func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	default:
		return ""
	}
}

// clearIndex removes the persisted vector snapshot and metadata
// database so the next ingest starts from scratch.
func clearIndex(dir string) error {
	for _, p := range []string{config.VectorSnapshotPath(dir), config.MetadataDBPath(dir)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

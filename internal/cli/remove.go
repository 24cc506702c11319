package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/usecase"
)

var removeCmd = &cobra.Command{
	Use:   "remove <document-id>",
	Short: "Remove a document and its chunks from the index",
	Long: `Remove a document, its chunk metadata and its vectors from the index
in one operation. Document IDs are shown by 'docqa status'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dataDir := GetRootDir()

	if _, err := os.Stat(config.MetadataDBPath(dataDir)); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'docqa ingest' first")
	}

	st, err := openStore(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	dimension, err := indexDimension(st, cfg)
	if err != nil {
		return err
	}
	idx, err := openIndex(dataDir, dimension)
	if err != nil {
		return err
	}

	chk, err := chunker.NewWindowChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	// Removal never embeds, so no API credentials are needed here.
	indexer, err := usecase.NewIndexer(chk, embedding.NewMockEmbedder(dimension), idx, st)
	if err != nil {
		return err
	}

	docID := args[0]
	if err := indexer.RemoveDocument(docID); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}

	fmt.Printf("Removed %s\n", docID)
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/usecase"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index health and indexed documents",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dataDir := GetRootDir()

	if _, err := os.Stat(config.MetadataDBPath(dataDir)); os.IsNotExist(err) {
		fmt.Println("No index found. Run 'docqa ingest' first.")
		return nil
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

	report, err := usecase.Health(idx, st)
	if err != nil {
		return err
	}

	if statusJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Vectors:   %d\n", report.VectorCount)
	fmt.Printf("Documents: %d\n", report.DocumentCount)
	fmt.Printf("Loaded:    %v\n", report.IndexLoaded)

	if m, err := st.GetManifest(); err == nil && m != nil {
		fmt.Printf("Model:     %s (%d dimensions)\n", m.EmbeddingModel, m.Dimension)
		fmt.Printf("Chunking:  %d chars, %d overlap\n", m.ChunkSize, m.ChunkOverlap)
	}

	docs, err := st.ListDocuments()
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		fmt.Printf("\n%-16s %-10s %s\n", "ID", "STATUS", "FILE")
		for _, doc := range docs {
			fmt.Printf("%-16s %-10s %s\n", doc.ID, doc.Status, doc.Filename)
		}
	}
	return nil
}

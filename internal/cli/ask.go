package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/usecase"
)

var (
	askQuestion string
	askTopK     int
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the indexed documents",
	Long: `Answer a question using only the indexed documents as context.
The answer reports which documents it drew on and a confidence tier.

Examples:
  docqa ask -q "what does the contract say about termination?"
  docqa ask -q "summarize the findings" --top-k 10 --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to answer (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	generator, err := newLLM(cfg)
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}

	answerer, err := usecase.NewAnswerer(embedder, idx, st, generator, nil, usecase.AnswererOptions{
		TopK:            cfg.Retrieve.TopK,
		MaxContextChars: cfg.Retrieve.MaxContextChars,
		HighThreshold:   cfg.Retrieve.HighThreshold,
		MediumThreshold: cfg.Retrieve.MediumThreshold,
	})
	if err != nil {
		return err
	}

	answer, err := answerer.Answer(askQuestion, askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Printf("\nSources: %v\n", answer.Sources)
	}
	fmt.Printf("Confidence: %s\n", answer.Confidence)
	return nil
}

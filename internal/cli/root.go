package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docqa/config"
	"docqa/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Document QA - index documents and answer questions grounded in them",
	Long: `docqa indexes plain-text documents into a local vector index and
answers questions using only the indexed content as context.

Example usage:
  docqa ingest ./docs              # Index documents under ./docs
  docqa ask -q "what is covered?"  # Ask a question against the index
  docqa status                     # Show index health and documents`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env beside the working directory supplies API keys; its
		// absence is not an error.
		_ = godotenv.Load()

		logger.SetVerbose(verbose)

		var err error
		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docqa.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

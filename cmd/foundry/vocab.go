package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var vocabMaxSimilarRuns int

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Dump the tokenizer vocabulary for the current configuration",
	Long: `Enumerates every token the encoder can emit under the configured value
sets, one per line. The vocabulary is what a model is trained against;
any configuration change that alters this output invalidates previously
trained models.`,
	RunE: runVocab,
}

func init() {
	vocabCmd.Flags().IntVar(&vocabMaxSimilarRuns, "max-similar-runs", 8, "History entries the encoder may emit")
}

func runVocab(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, token := range encoderConfig(cfg).Vocabulary(vocabMaxSimilarRuns) {
		fmt.Fprintln(w, token)
	}
	return nil
}

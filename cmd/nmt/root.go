package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/golangast/nmt/neural/nnu/dataset"
	"github.com/golangast/nmt/neural/tokenizer"
)

var (
	logLevel string
	logger   = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nmt",
	Short: "Train and run a German to English seq2seq translator",
	Long: `
An encoder-decoder LSTM translation model.

Train it on a parallel corpus, then translate sentences with the best
checkpoint.
	`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(newTrainCommand())
	rootCmd.AddCommand(newTranslateCommand())
}

// newFields returns the German and English fields. German tokens are
// reversed; both sides are lowercased.
func newFields(tokenizerPath string) (*dataset.Field, *dataset.Field, error) {
	var tok tokenizer.Tokenizer = tokenizer.Basic{}
	if tokenizerPath != "" {
		pretrained, err := tokenizer.LoadPretrained(tokenizerPath)
		if err != nil {
			return nil, nil, err
		}
		tok = pretrained
	}
	src := &dataset.Field{Tokenizer: tok, Lower: true, Reverse: true}
	trg := &dataset.Field{Tokenizer: tok, Lower: true}
	return src, trg, nil
}

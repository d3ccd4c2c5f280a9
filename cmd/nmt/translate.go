package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/golangast/nmt/neural/nnu/dataset"
	"github.com/golangast/nmt/neural/nnu/seq2seq"
)

func newTranslateCommand() *cobra.Command {
	var (
		modelPath string
		maxLen    int
	)
	cmd := &cobra.Command{
		Use:   "translate [sentences...]",
		Short: "Translate German sentences, read from stdin when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ckpt, err := seq2seq.Load(modelPath)
			if err != nil {
				return err
			}
			model, err := ckpt.Model(rand.New(rand.NewSource(1)))
			if err != nil {
				return err
			}
			src, _, err := newFields(ckpt.TokenizerPath)
			if err != nil {
				return err
			}
			src.Vocab = ckpt.SrcVocab
			logger.Debug("loaded checkpoint", "path", modelPath, "epoch", ckpt.Epoch, "dev_loss", ckpt.DevLoss)

			t := &translator{model: model, src: src, ckpt: ckpt, maxLen: maxLen}
			if len(args) > 0 {
				for _, sentence := range args {
					if err := t.translate(cmd.OutOrStdout(), sentence); err != nil {
						return err
					}
				}
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := t.translate(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "neural-seq2seq.gob", "Path to a checkpoint written by train")
	cmd.Flags().IntVar(&maxLen, "max-len", 50, "Maximum number of tokens to generate")
	return cmd
}

type translator struct {
	model  *seq2seq.Seq2Seq
	src    *dataset.Field
	ckpt   *seq2seq.Checkpoint
	maxLen int
}

func (t *translator) translate(w io.Writer, sentence string) error {
	tokens, err := t.src.Preprocess(sentence)
	if err != nil {
		return err
	}
	trgVocab := t.ckpt.TrgVocab
	ids, err := t.model.Translate(t.src.Numericalize(tokens), trgVocab.SosID, trgVocab.EosID, t.maxLen)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.Join(trgVocab.Decode(ids), " "))
	return err
}

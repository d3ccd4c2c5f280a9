// Package dataset loads parallel corpora and cuts them into padded batches.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golangast/nmt/neural/nnu/vocab"
	"github.com/golangast/nmt/neural/tokenizer"
)

// ErrEmptyDataset is returned when a corpus yields no usable sentence pairs.
var ErrEmptyDataset = errors.New("dataset has no examples")

// Field describes how one side of a sentence pair becomes token IDs.
type Field struct {
	Tokenizer tokenizer.Tokenizer
	Lower     bool
	Reverse   bool
	Vocab     *vocab.Vocabulary
}

// Preprocess tokenizes text and applies lowercasing and reversal.
func (f *Field) Preprocess(text string) ([]string, error) {
	tokens, err := f.Tokenizer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	if f.Lower {
		tokens = tokenizer.Lower(tokens)
	}
	if f.Reverse {
		tokens = tokenizer.Reverse(tokens)
	}
	return tokens, nil
}

// BuildVocab builds the field's vocabulary from the given sequences.
func (f *Field) BuildVocab(sequences [][]string, minFreq int) {
	f.Vocab = vocab.Build(sequences, minFreq)
}

// Numericalize wraps tokens in <sos>/<eos> and maps them to IDs.
func (f *Field) Numericalize(tokens []string) []int {
	ids := make([]int, 0, len(tokens)+2)
	ids = append(ids, f.Vocab.SosID)
	ids = append(ids, f.Vocab.Encode(tokens)...)
	return append(ids, f.Vocab.EosID)
}

// Example is one preprocessed sentence pair.
type Example struct {
	Src []string
	Trg []string
}

// TranslationDataset holds aligned source/target examples.
type TranslationDataset struct {
	Examples []Example
}

// LoadTranslationDataset reads path+srcExt and path+trgExt line by line.
// Pairs where either side is blank are skipped.
func LoadTranslationDataset(path, srcExt, trgExt string, src, trg *Field) (*TranslationDataset, error) {
	srcLines, err := readLines(path + srcExt)
	if err != nil {
		return nil, err
	}
	trgLines, err := readLines(path + trgExt)
	if err != nil {
		return nil, err
	}
	if len(srcLines) != len(trgLines) {
		return nil, fmt.Errorf("%s%s has %d lines but %s%s has %d", path, srcExt, len(srcLines), path, trgExt, len(trgLines))
	}

	ds := &TranslationDataset{}
	for i := range srcLines {
		s, t := strings.TrimSpace(srcLines[i]), strings.TrimSpace(trgLines[i])
		if s == "" || t == "" {
			continue
		}
		srcTokens, err := src.Preprocess(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		trgTokens, err := trg.Preprocess(t)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		ds.Examples = append(ds.Examples, Example{Src: srcTokens, Trg: trgTokens})
	}
	if len(ds.Examples) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDataset)
	}
	return ds, nil
}

// FilterLongTargets drops examples whose target has more than maxLen tokens
// and returns how many were removed.
func (d *TranslationDataset) FilterLongTargets(maxLen int) int {
	kept := d.Examples[:0]
	for _, ex := range d.Examples {
		if len(ex.Trg) <= maxLen {
			kept = append(kept, ex)
		}
	}
	removed := len(d.Examples) - len(kept)
	d.Examples = kept
	return removed
}

// Sources returns every source token sequence.
func (d *TranslationDataset) Sources() [][]string {
	out := make([][]string, len(d.Examples))
	for i, ex := range d.Examples {
		out[i] = ex.Src
	}
	return out
}

// Targets returns every target token sequence.
func (d *TranslationDataset) Targets() [][]string {
	out := make([][]string, len(d.Examples))
	for i, ex := range d.Examples {
		out[i] = ex.Trg
	}
	return out
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// Package tokenizer splits raw sentences into tokens.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer turns a sentence into a list of tokens.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// Basic splits NFKC-normalized text on whitespace and emits every
// punctuation rune as its own token.
type Basic struct{}

// Tokenize splits a string into words and punctuation.
func (Basic) Tokenize(text string) ([]string, error) {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range norm.NFKC.String(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens, nil
}

// Pretrained wraps a tokenizer loaded from a HuggingFace tokenizer.json,
// such as a multilingual BERT wordpiece model.
type Pretrained struct {
	tok *tk.Tokenizer
}

// LoadPretrained reads a tokenizer.json file.
func LoadPretrained(path string) (*Pretrained, error) {
	t, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", path, err)
	}
	return &Pretrained{tok: t}, nil
}

// Tokenize returns the model's sub-word tokens without special tokens.
func (p *Pretrained) Tokenize(text string) ([]string, error) {
	enc, err := p.tok.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q: %w", text, err)
	}
	return enc.Tokens, nil
}

// Lower lowercases every token.
func Lower(tokens []string) []string {
	caser := cases.Lower(language.Und)
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = caser.String(tok)
	}
	return out
}

// Reverse returns tokens in reverse order.
func Reverse(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[len(tokens)-1-i] = tok
	}
	return out
}

// Package vocab maps tokens to integer IDs.
package vocab

import "sort"

// Special tokens, always present at the front of every vocabulary.
const (
	UnkToken = "<unk>"
	PadToken = "<pad>"
	SosToken = "<sos>"
	EosToken = "<eos>"
)

// Vocabulary is an ordered token list with its reverse index.
type Vocabulary struct {
	Itos []string
	Stoi map[string]int

	UnkID int
	PadID int
	SosID int
	EosID int
}

// Build creates a vocabulary from token sequences. The four special tokens
// come first; every other token seen at least minFreq times follows, most
// frequent first and ties in lexicographic order.
func Build(sequences [][]string, minFreq int) *Vocabulary {
	if minFreq < 1 {
		minFreq = 1
	}
	specials := []string{UnkToken, PadToken, SosToken, EosToken}
	isSpecial := make(map[string]bool, len(specials))
	for _, s := range specials {
		isSpecial[s] = true
	}

	counts := make(map[string]int)
	for _, seq := range sequences {
		for _, tok := range seq {
			if !isSpecial[tok] {
				counts[tok]++
			}
		}
	}

	words := make([]string, 0, len(counts))
	for w, c := range counts {
		if c >= minFreq {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	v := &Vocabulary{
		Itos: append(specials, words...),
		Stoi: make(map[string]int, len(specials)+len(words)),
	}
	for i, tok := range v.Itos {
		v.Stoi[tok] = i
	}
	v.UnkID = v.Stoi[UnkToken]
	v.PadID = v.Stoi[PadToken]
	v.SosID = v.Stoi[SosToken]
	v.EosID = v.Stoi[EosToken]
	return v
}

// Size returns the number of entries.
func (v *Vocabulary) Size() int {
	return len(v.Itos)
}

// GetTokenID returns the ID of tok, or UnkID when it is unknown.
func (v *Vocabulary) GetTokenID(tok string) int {
	if id, ok := v.Stoi[tok]; ok {
		return id
	}
	return v.UnkID
}

// GetWord returns the token for id, or the empty string when out of range.
func (v *Vocabulary) GetWord(id int) string {
	if id < 0 || id >= len(v.Itos) {
		return ""
	}
	return v.Itos[id]
}

// Encode maps tokens to IDs.
func (v *Vocabulary) Encode(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = v.GetTokenID(tok)
	}
	return ids
}

// Decode maps IDs back to tokens, stopping at the first EosID and skipping
// SosID and PadID.
func (v *Vocabulary) Decode(ids []int) []string {
	var out []string
	for _, id := range ids {
		if id == v.EosID {
			break
		}
		if id == v.SosID || id == v.PadID {
			continue
		}
		out = append(out, v.GetWord(id))
	}
	return out
}

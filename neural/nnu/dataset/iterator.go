package dataset

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
)

// poolBatches is how many batches worth of examples are sorted together
// when bucketing training data.
const poolBatches = 100

// Batch is a padded, time-major block of examples: Src[t][b] is the token
// at step t of example b.
type Batch struct {
	Src  [][]int
	Trg  [][]int
	Size int
}

// BucketIterator groups examples of similar length into batches.
type BucketIterator struct {
	examples  []Example
	batchSize int
	train     bool
	rng       *rand.Rand
	src, trg  *Field
}

// NewBucketIterator creates an iterator over ds. In training mode batches
// are drawn from shuffled, length-sorted pools and their order is shuffled
// each epoch; otherwise all examples are sorted by length once.
func NewBucketIterator(ds *TranslationDataset, batchSize int, train bool, src, trg *Field, rng *rand.Rand) (*BucketIterator, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if train && rng == nil {
		return nil, fmt.Errorf("training iterator needs a random source")
	}
	return &BucketIterator{
		examples:  ds.Examples,
		batchSize: batchSize,
		train:     train,
		rng:       rng,
		src:       src,
		trg:       trg,
	}, nil
}

// Len returns the number of batches per epoch.
func (it *BucketIterator) Len() int {
	return (len(it.examples) + it.batchSize - 1) / it.batchSize
}

// Batches returns the batches for one epoch.
func (it *BucketIterator) Batches() []Batch {
	var groups [][]Example
	if it.train {
		groups = it.pooledGroups()
	} else {
		sorted := append([]Example(nil), it.examples...)
		sortByLength(sorted)
		groups = chunk(sorted, it.batchSize)
	}

	batches := make([]Batch, len(groups))
	for i, g := range groups {
		batches[i] = it.pad(g)
	}
	return batches
}

func (it *BucketIterator) pooledGroups() [][]Example {
	shuffled := append([]Example(nil), it.examples...)
	it.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var groups [][]Example
	for _, pool := range chunk(shuffled, it.batchSize*poolBatches) {
		sortByLength(pool)
		poolGroups := chunk(pool, it.batchSize)
		it.rng.Shuffle(len(poolGroups), func(i, j int) {
			poolGroups[i], poolGroups[j] = poolGroups[j], poolGroups[i]
		})
		groups = append(groups, poolGroups...)
	}
	return groups
}

// pad numericalizes a group and lays it out time-major, padded to the
// longest sequence on each side.
func (it *BucketIterator) pad(group []Example) Batch {
	srcIDs := make([][]int, len(group))
	trgIDs := make([][]int, len(group))
	for i, ex := range group {
		srcIDs[i] = it.src.Numericalize(ex.Src)
		trgIDs[i] = it.trg.Numericalize(ex.Trg)
	}
	return Batch{
		Src:  timeMajor(srcIDs, it.src.Vocab.PadID),
		Trg:  timeMajor(trgIDs, it.trg.Vocab.PadID),
		Size: len(group),
	}
}

func timeMajor(seqs [][]int, padID int) [][]int {
	maxLen := 0
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	out := make([][]int, maxLen)
	for t := range out {
		out[t] = make([]int, len(seqs))
		for b, s := range seqs {
			if t < len(s) {
				out[t][b] = s[t]
			} else {
				out[t][b] = padID
			}
		}
	}
	return out
}

func sortByLength(examples []Example) {
	sort.SliceStable(examples, func(i, j int) bool {
		if len(examples[i].Src) != len(examples[j].Src) {
			return len(examples[i].Src) < len(examples[j].Src)
		}
		return len(examples[i].Trg) < len(examples[j].Trg)
	})
}

func chunk(examples []Example, size int) [][]Example {
	var out [][]Example
	for start := 0; start < len(examples); start += size {
		end := start + size
		if end > len(examples) {
			end = len(examples)
		}
		out = append(out, examples[start:end])
	}
	return out
}

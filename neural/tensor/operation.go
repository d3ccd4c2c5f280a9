package tensor

import (
	"fmt"
	"math"
)

// Rand is the source of uniform draws used by stochastic operations.
type Rand interface {
	Float64() float64
}

// EmbeddingLookup gathers rows of weights [vocab, dim] for each id, giving [len(ids), dim].
func EmbeddingLookup(weights *Tensor, ids []int) (*Tensor, error) {
	if len(weights.Shape) != 2 {
		return nil, fmt.Errorf("embedding weights must be 2D, got %v", weights.Shape)
	}
	vocabSize, dim := weights.Shape[0], weights.Shape[1]
	resultData := make([]float64, len(ids)*dim)
	for i, id := range ids {
		if id < 0 || id >= vocabSize {
			return nil, fmt.Errorf("token ID %d is out of vocabulary range [0, %d)", id, vocabSize)
		}
		copy(resultData[i*dim:(i+1)*dim], weights.Data[id*dim:(id+1)*dim])
	}
	result := NewTensor([]int{len(ids), dim}, resultData, tracked(weights))
	if result.RequiresGrad {
		idsCopy := make([]int, len(ids))
		copy(idsCopy, ids)
		result.Creator = &EmbeddingLookupOperation{InputIDs: idsCopy, Weights: weights}
	}
	return result, nil
}

// EmbeddingLookupOperation represents an embedding lookup operation for autograd.
type EmbeddingLookupOperation struct {
	InputIDs []int
	Weights  *Tensor
}

func (op *EmbeddingLookupOperation) Inputs() []*Tensor {
	return []*Tensor{op.Weights}
}

func (op *EmbeddingLookupOperation) Backward(grad *Tensor) error {
	dim := op.Weights.Shape[1]
	d := make([]float64, len(op.Weights.Data))
	for i, id := range op.InputIDs {
		row := d[id*dim : (id+1)*dim]
		for k := range row {
			row[k] += grad.Data[i*dim+k]
		}
	}
	accumulateGrad(op.Weights, d)
	return nil
}

// Dropout zeroes each element with probability p and scales survivors by
// 1/(1-p). With p == 0 the input is returned unchanged.
func Dropout(t *Tensor, p float64, rng Rand) (*Tensor, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %v", p)
	}
	if p == 0 {
		return t, nil
	}
	scale := 1 / (1 - p)
	mask := make([]float64, len(t.Data))
	resultData := make([]float64, len(t.Data))
	for i, v := range t.Data {
		if rng.Float64() >= p {
			mask[i] = scale
			resultData[i] = v * scale
		}
	}
	result := NewTensor(t.Shape, resultData, tracked(t))
	if result.RequiresGrad {
		result.Creator = &DropoutOperation{Input: t, Mask: mask}
	}
	return result, nil
}

// DropoutOperation routes gradient through the kept elements only.
type DropoutOperation struct {
	Input *Tensor
	Mask  []float64
}

func (op *DropoutOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *DropoutOperation) Backward(grad *Tensor) error {
	d := make([]float64, len(grad.Data))
	for i, g := range grad.Data {
		d[i] = g * op.Mask[i]
	}
	accumulateGrad(op.Input, d)
	return nil
}

// CrossEntropy computes the mean negative log-likelihood of targets under
// softmax(logits) for logits [n, classes]. Rows whose target equals
// ignoreIndex do not contribute. If every row is ignored the loss is zero.
func CrossEntropy(logits *Tensor, targets []int, ignoreIndex int) (*Tensor, error) {
	if len(logits.Shape) != 2 {
		return nil, fmt.Errorf("CrossEntropy expects 2D logits, got shape %v", logits.Shape)
	}
	rows, classes := logits.Shape[0], logits.Shape[1]
	if len(targets) != rows {
		return nil, fmt.Errorf("mismatched target and logit dimensions: targets %d, logits rows %d", len(targets), rows)
	}

	probs := make([]float64, len(logits.Data))
	loss := 0.0
	counted := 0
	for r, target := range targets {
		if target == ignoreIndex {
			continue
		}
		if target < 0 || target >= classes {
			return nil, fmt.Errorf("target %d out of range [0, %d)", target, classes)
		}
		row := logits.Data[r*classes : (r+1)*classes]
		maxLogit := math.Inf(-1)
		for _, v := range row {
			if v > maxLogit {
				maxLogit = v
			}
		}
		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - maxLogit)
		}
		logSumExp := maxLogit + math.Log(sumExp)
		for c, v := range row {
			probs[r*classes+c] = math.Exp(v - logSumExp)
		}
		loss += logSumExp - row[target]
		counted++
	}
	if counted > 0 {
		loss /= float64(counted)
	}

	result := NewTensor([]int{1}, []float64{loss}, tracked(logits))
	if result.RequiresGrad {
		t := make([]int, len(targets))
		copy(t, targets)
		result.Creator = &CrossEntropyOperation{
			Logits:      logits,
			Targets:     t,
			IgnoreIndex: ignoreIndex,
			Probs:       probs,
			Count:       counted,
		}
	}
	return result, nil
}

// CrossEntropyOperation holds the softmax of the forward pass for backprop.
type CrossEntropyOperation struct {
	Logits      *Tensor
	Targets     []int
	IgnoreIndex int
	Probs       []float64
	Count       int
}

func (op *CrossEntropyOperation) Inputs() []*Tensor {
	return []*Tensor{op.Logits}
}

func (op *CrossEntropyOperation) Backward(grad *Tensor) error {
	if op.Count == 0 {
		return nil
	}
	classes := op.Logits.Shape[1]
	scale := grad.Data[0] / float64(op.Count)
	d := make([]float64, len(op.Logits.Data))
	for r, target := range op.Targets {
		if target == op.IgnoreIndex {
			continue
		}
		for c := 0; c < classes; c++ {
			p := op.Probs[r*classes+c]
			if c == target {
				p -= 1
			}
			d[r*classes+c] = p * scale
		}
	}
	accumulateGrad(op.Logits, d)
	return nil
}

// Argmax returns the index of the largest value in each row of a 2D tensor.
// Ties resolve to the lowest index.
func Argmax(t *Tensor) ([]int, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Argmax expects a 2D tensor, got shape %v", t.Shape)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		row := t.Data[r*cols : (r+1)*cols]
		best := 0
		for c := 1; c < cols; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[r] = best
	}
	return out, nil
}

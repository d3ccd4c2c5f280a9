package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/golangast/nmt/neural/tensor"
)

// Embedding represents a simple token embedding layer.
type Embedding struct {
	VocabSize int
	DimModel  int
	Weight    *tensor.Tensor // [VocabSize, DimModel]
}

// NewEmbedding creates a new Embedding layer initialized from N(0, 1).
func NewEmbedding(vocabSize, dimModel int, rng *rand.Rand) (*Embedding, error) {
	if vocabSize <= 0 || dimModel <= 0 {
		return nil, fmt.Errorf("invalid embedding size %dx%d", vocabSize, dimModel)
	}
	return &Embedding{
		VocabSize: vocabSize,
		DimModel:  dimModel,
		Weight:    normalParameter([]int{vocabSize, dimModel}, rng),
	}, nil
}

// Forward looks up one embedding row per token ID, giving [len(ids), DimModel].
func (e *Embedding) Forward(ids []int) (*tensor.Tensor, error) {
	out, err := tensor.EmbeddingLookup(e.Weight, ids)
	if err != nil {
		return nil, fmt.Errorf("embedding forward failed: %w", err)
	}
	return out, nil
}

// Parameters returns all learnable parameters of the layer.
func (e *Embedding) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{e.Weight}
}

// Linear represents a linear layer (fully connected layer).
type Linear struct {
	Weights *tensor.Tensor // [inputDim, outputDim]
	Biases  *tensor.Tensor // [outputDim]
}

// NewLinear creates a new Linear layer with weights and biases drawn from
// U(-1/sqrt(inputDim), 1/sqrt(inputDim)).
func NewLinear(inputDim, outputDim int, rng *rand.Rand) (*Linear, error) {
	if inputDim <= 0 || outputDim <= 0 {
		return nil, fmt.Errorf("invalid linear size %dx%d", inputDim, outputDim)
	}
	bound := 1 / math.Sqrt(float64(inputDim))
	return &Linear{
		Weights: uniformParameter([]int{inputDim, outputDim}, bound, rng),
		Biases:  uniformParameter([]int{outputDim}, bound, rng),
	}, nil
}

// Forward computes input @ Weights + Biases for input [batch, inputDim].
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := input.MatMul(l.Weights)
	if err != nil {
		return nil, fmt.Errorf("linear layer matrix multiplication failed: %w", err)
	}
	out, err = out.AddWithBroadcast(l.Biases)
	if err != nil {
		return nil, fmt.Errorf("linear layer bias addition failed: %w", err)
	}
	return out, nil
}

// Parameters returns all learnable parameters of the layer.
func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.Weights, l.Biases}
}

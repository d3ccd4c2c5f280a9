package nn

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/golangast/nmt/neural/tensor"
)

// uniformParameter draws every element from U(-bound, bound).
func uniformParameter(shape []int, bound float64, rng *rand.Rand) *tensor.Tensor {
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: rng}
	t := tensor.NewTensor(shape, nil, true)
	for i := range t.Data {
		t.Data[i] = dist.Rand()
	}
	return t
}

// normalParameter draws every element from N(0, 1).
func normalParameter(shape []int, rng *rand.Rand) *tensor.Tensor {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	t := tensor.NewTensor(shape, nil, true)
	for i := range t.Data {
		t.Data[i] = dist.Rand()
	}
	return t
}

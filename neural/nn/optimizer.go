package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/golangast/nmt/neural/tensor"
)

// Optimizer interface defines the contract for optimizers.
type Optimizer interface {
	Step()
	ZeroGrad()
}

// Adam represents the Adam optimizer.
type Adam struct {
	parameters   []*tensor.Tensor
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	t            int
	m            map[*tensor.Tensor][]float64 // 1st moment vector
	v            map[*tensor.Tensor][]float64 // 2nd moment vector
}

// NewAdam creates a new Adam optimizer with β=(0.9, 0.999) and ε=1e-8.
func NewAdam(parameters []*tensor.Tensor, learningRate float64) *Adam {
	return &Adam{
		parameters:   parameters,
		learningRate: learningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
		m:            make(map[*tensor.Tensor][]float64),
		v:            make(map[*tensor.Tensor][]float64),
	}
}

// Step performs a single optimization step. Parameters without a gradient
// are left untouched.
func (o *Adam) Step() {
	o.t++
	correction1 := 1 - math.Pow(o.beta1, float64(o.t))
	correction2 := 1 - math.Pow(o.beta2, float64(o.t))
	for _, p := range o.parameters {
		if p.Grad == nil {
			continue
		}
		m, ok := o.m[p]
		if !ok {
			m = make([]float64, len(p.Data))
			o.m[p] = m
			o.v[p] = make([]float64, len(p.Data))
		}
		v := o.v[p]
		for i, g := range p.Grad.Data {
			m[i] = o.beta1*m[i] + (1-o.beta1)*g
			v[i] = o.beta2*v[i] + (1-o.beta2)*g*g
			mHat := m[i] / correction1
			vHat := v[i] / correction2
			p.Data[i] -= o.learningRate * mHat / (math.Sqrt(vHat) + o.epsilon)
		}
	}
}

// ZeroGrad resets the gradients of all parameters.
func (o *Adam) ZeroGrad() {
	for _, p := range o.parameters {
		p.ZeroGrad()
	}
}

// ClipGradNorm rescales all gradients so their combined L2 norm is at most
// maxNorm. It returns the norm measured before clipping.
func ClipGradNorm(parameters []*tensor.Tensor, maxNorm float64) float64 {
	sumSquares := 0.0
	for _, p := range parameters {
		if p.Grad != nil {
			sumSquares += floats.Dot(p.Grad.Data, p.Grad.Data)
		}
	}
	total := math.Sqrt(sumSquares)
	coef := maxNorm / (total + 1e-6)
	if coef < 1 {
		for _, p := range parameters {
			if p.Grad != nil {
				floats.Scale(coef, p.Grad.Data)
			}
		}
	}
	return total
}

// CountParameters returns the number of trainable scalars.
func CountParameters(parameters []*tensor.Tensor) int {
	n := 0
	for _, p := range parameters {
		if p.RequiresGrad {
			n += len(p.Data)
		}
	}
	return n
}

package nn

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/golangast/nmt/neural/tensor"
)

func TestLSTMShapesAndParameterCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	lstm, err := NewLSTM(3, 4, 2, 0.5, rng)
	if err != nil {
		t.Fatal(err)
	}

	// 4*h*(in+h) + 8*h per layer
	want := (4*4*(3+4) + 8*4) + (4*4*(4+4) + 8*4)
	if got := CountParameters(lstm.Parameters()); got != want {
		t.Errorf("CountParameters = %d, want %d", got, want)
	}

	x := tensor.NewTensor([]int{2, 3}, []float64{0.1, 0.2, 0.3, -0.1, -0.2, -0.3}, false)
	state, err := lstm.Step(x, ZeroState(2, 2, 4), true, rng)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if s := state.Hidden[i].Shape; s[0] != 2 || s[1] != 4 {
			t.Errorf("hidden[%d] shape %v", i, s)
		}
		for _, v := range state.Hidden[i].Data {
			if math.Abs(v) >= 1 {
				t.Errorf("hidden value %v outside (-1, 1)", v)
			}
		}
	}

	if _, err := lstm.Step(x, ZeroState(1, 2, 4), false, nil); err == nil {
		t.Errorf("expected error for state with wrong layer count")
	}
}

func TestLSTMCellGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cell, err := NewLSTMCell(2, 3, rng)
	if err != nil {
		t.Fatal(err)
	}
	x := tensor.NewTensor([]int{2, 2}, []float64{0.5, -0.3, 0.8, 0.1}, false)
	h0 := tensor.NewTensor([]int{2, 3}, []float64{0.1, 0.2, -0.1, 0, 0.3, -0.2}, false)
	c0 := tensor.NewTensor([]int{2, 3}, []float64{-0.4, 0.2, 0.1, 0.5, 0, 0.3}, false)
	targets := []int{2, 0}

	loss := func() *tensor.Tensor {
		h, c, err := cell.Forward(x, h0, c0)
		if err != nil {
			t.Fatal(err)
		}
		sum, err := h.Add(c)
		if err != nil {
			t.Fatal(err)
		}
		l, err := tensor.CrossEntropy(sum, targets, -1)
		if err != nil {
			t.Fatal(err)
		}
		return l
	}

	if err := loss().Backward(); err != nil {
		t.Fatal(err)
	}

	const eps = 1e-6
	for pi, p := range cell.Parameters() {
		for i := range p.Data {
			orig := p.Data[i]
			var plus, minus float64
			tensor.NoGrad(func() {
				p.Data[i] = orig + eps
				plus = loss().Data[0]
				p.Data[i] = orig - eps
				minus = loss().Data[0]
			})
			p.Data[i] = orig
			numeric := (plus - minus) / (2 * eps)
			if math.Abs(numeric-p.Grad.Data[i]) > 1e-6 {
				t.Errorf("param %d[%d]: analytic %v, numeric %v", pi, i, p.Grad.Data[i], numeric)
			}
		}
	}
}

func TestClipGradNorm(t *testing.T) {
	a := tensor.NewTensor([]int{2}, []float64{0, 0}, true)
	b := tensor.NewTensor([]int{1}, []float64{0}, true)
	a.Grad = tensor.NewTensor([]int{2}, []float64{3, 0}, false)
	b.Grad = tensor.NewTensor([]int{1}, []float64{4}, false)

	norm := ClipGradNorm([]*tensor.Tensor{a, b}, 1)
	if math.Abs(norm-5) > 1e-12 {
		t.Errorf("norm = %v, want 5", norm)
	}
	clipped := math.Sqrt(a.Grad.Data[0]*a.Grad.Data[0] + b.Grad.Data[0]*b.Grad.Data[0])
	if math.Abs(clipped-1) > 1e-5 {
		t.Errorf("clipped norm = %v, want 1", clipped)
	}

	small := tensor.NewTensor([]int{1}, []float64{0}, true)
	small.Grad = tensor.NewTensor([]int{1}, []float64{0.5}, false)
	ClipGradNorm([]*tensor.Tensor{small}, 1)
	if small.Grad.Data[0] != 0.5 {
		t.Errorf("gradient under the limit was changed to %v", small.Grad.Data[0])
	}
}

func TestAdamMinimizesQuadratic(t *testing.T) {
	w := tensor.NewTensor([]int{1, 1}, []float64{3}, true)
	opt := NewAdam([]*tensor.Tensor{w}, 0.1)
	for i := 0; i < 300; i++ {
		opt.ZeroGrad()
		sq, err := w.Mul(w)
		if err != nil {
			t.Fatal(err)
		}
		if err := sq.Backward(); err != nil {
			t.Fatal(err)
		}
		opt.Step()
	}
	if math.Abs(w.Data[0]) > 0.1 {
		t.Errorf("w = %v after 300 steps, want close to 0", w.Data[0])
	}
}

func TestLinearAndEmbedding(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	emb, err := NewEmbedding(5, 4, rng)
	if err != nil {
		t.Fatal(err)
	}
	lin, err := NewLinear(4, 6, rng)
	if err != nil {
		t.Fatal(err)
	}
	e, err := emb.Forward([]int{0, 4, 4})
	if err != nil {
		t.Fatal(err)
	}
	out, err := lin.Forward(e)
	if err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 3 || out.Shape[1] != 6 {
		t.Errorf("linear output shape %v, want [3 6]", out.Shape)
	}
	if _, err := emb.Forward([]int{5}); err == nil {
		t.Errorf("expected out-of-range token error")
	}
	if _, err := NewLinear(0, 3, rng); err == nil {
		t.Errorf("expected error for zero input dim")
	}
}

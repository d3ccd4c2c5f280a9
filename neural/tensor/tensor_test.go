package tensor

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"
)

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

func seq(n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(float64(i)+1) * scale
	}
	return out
}

// lossFn builds a small graph touching every differentiable op.
func lossFn(x, w, b, emb *Tensor) (*Tensor, error) {
	e, err := EmbeddingLookup(emb, []int{2, 0})
	if err != nil {
		return nil, err
	}
	in, err := Concat([]*Tensor{x, e}, 1) // [2, 5]
	if err != nil {
		return nil, err
	}
	h, err := in.MatMul(w) // [2, 6]
	if err != nil {
		return nil, err
	}
	h, err = h.AddWithBroadcast(b)
	if err != nil {
		return nil, err
	}
	left, err := h.Slice(1, 0, 3)
	if err != nil {
		return nil, err
	}
	right, err := h.Slice(1, 3, 6)
	if err != nil {
		return nil, err
	}
	sl, err := left.Sigmoid()
	if err != nil {
		return nil, err
	}
	tr, err := right.Tanh()
	if err != nil {
		return nil, err
	}
	p, err := sl.Mul(tr)
	if err != nil {
		return nil, err
	}
	p, err = p.Add(tr)
	if err != nil {
		return nil, err
	}
	stacked, err := Concat([]*Tensor{p, sl}, 0) // [4, 3]
	if err != nil {
		return nil, err
	}
	return CrossEntropy(stacked, []int{1, 2, -1, 0}, -1)
}

func TestBackwardMatchesNumericalGradient(t *testing.T) {
	x := NewTensor([]int{2, 3}, seq(6, 0.7), true)
	w := NewTensor([]int{5, 6}, seq(30, 0.5), true)
	b := NewTensor([]int{6}, seq(6, 0.1), true)
	emb := NewTensor([]int{3, 2}, seq(6, 0.9), true)

	loss, err := lossFn(x, w, b, emb)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}

	const eps = 1e-6
	for name, param := range map[string]*Tensor{"x": x, "w": w, "b": b, "emb": emb} {
		for i := range param.Data {
			orig := param.Data[i]
			var plus, minus float64
			NoGrad(func() {
				param.Data[i] = orig + eps
				lp, _ := lossFn(x, w, b, emb)
				param.Data[i] = orig - eps
				lm, _ := lossFn(x, w, b, emb)
				plus, minus = lp.Data[0], lm.Data[0]
			})
			param.Data[i] = orig
			numeric := (plus - minus) / (2 * eps)
			if diff := math.Abs(numeric - param.Grad.Data[i]); diff > 1e-6 {
				t.Errorf("%s[%d]: analytic %v, numeric %v", name, i, param.Grad.Data[i], numeric)
			}
		}
	}
}

func TestNoGradSkipsGraph(t *testing.T) {
	a := NewTensor([]int{1, 2}, []float64{1, 2}, true)
	var out *Tensor
	NoGrad(func() {
		out, _ = a.Tanh()
	})
	if out.RequiresGrad || out.Creator != nil {
		t.Errorf("expected untracked result inside NoGrad")
	}
	if !GradEnabled() {
		t.Errorf("grad should be re-enabled after NoGrad returns")
	}
}

func TestCrossEntropyIgnoresPadding(t *testing.T) {
	logits := NewTensor([]int{2, 2}, []float64{0, 0, 5, -5}, true)
	loss, err := CrossEntropy(logits, []int{1, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if loss.Data[0] != 0 {
		t.Errorf("all rows ignored: got loss %v, want 0", loss.Data[0])
	}
	if err := loss.Backward(); err != nil {
		t.Fatal(err)
	}
	if logits.Grad != nil {
		for _, g := range logits.Grad.Data {
			if g != 0 {
				t.Fatalf("ignored rows received gradient %v", logits.Grad.Data)
			}
		}
	}

	loss, err = CrossEntropy(NewTensor([]int{1, 2}, []float64{0, 0}, false), []int{0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(loss.Data[0]-math.Ln2) > 1e-12 {
		t.Errorf("uniform logits: got %v, want ln 2", loss.Data[0])
	}
}

func TestDropout(t *testing.T) {
	x := NewTensor([]int{1, 3}, []float64{1, 2, 3}, true)
	kept, err := Dropout(x, 0.5, constRand(0.9))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range kept.Data {
		if v != x.Data[i]*2 {
			t.Errorf("kept[%d] = %v, want %v", i, v, x.Data[i]*2)
		}
	}
	dropped, _ := Dropout(x, 0.5, constRand(0.1))
	for i, v := range dropped.Data {
		if v != 0 {
			t.Errorf("dropped[%d] = %v, want 0", i, v)
		}
	}
	same, _ := Dropout(x, 0, constRand(0))
	if same != x {
		t.Errorf("p=0 should return the input tensor")
	}
	if _, err := Dropout(x, 1, constRand(0)); err == nil {
		t.Errorf("expected error for p=1")
	}
}

func TestShapeErrors(t *testing.T) {
	a := NewTensor([]int{2, 3}, nil, false)
	b := NewTensor([]int{2, 3}, nil, false)
	if _, err := a.MatMul(b); err == nil {
		t.Errorf("expected MatMul shape error")
	}
	if _, err := a.Add(NewTensor([]int{3, 2}, nil, false)); err == nil {
		t.Errorf("expected Add shape error")
	}
	if _, err := a.Slice(1, 2, 4); err == nil {
		t.Errorf("expected Slice bounds error")
	}
	if _, err := Concat([]*Tensor{a, NewTensor([]int{3, 3}, nil, false)}, 1); err == nil {
		t.Errorf("expected Concat shape error")
	}
	if _, err := EmbeddingLookup(a, []int{5}); err == nil {
		t.Errorf("expected out-of-vocabulary error")
	}
}

func TestArgmax(t *testing.T) {
	x := NewTensor([]int{3, 3}, []float64{0, 2, 1, 5, 5, 0, -1, -2, -0.5}, false)
	got, err := Argmax(x)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGobRoundTrip(t *testing.T) {
	orig := NewTensor([]int{2, 2}, []float64{1, 2, 3, 4}, true)
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(orig); err != nil {
		t.Fatal(err)
	}
	var decoded Tensor
	if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if !compareShapes(decoded.Shape, orig.Shape) || !decoded.RequiresGrad {
		t.Fatalf("decoded %+v", decoded)
	}
	for i := range orig.Data {
		if decoded.Data[i] != orig.Data[i] {
			t.Errorf("data[%d] = %v, want %v", i, decoded.Data[i], orig.Data[i])
		}
	}
}

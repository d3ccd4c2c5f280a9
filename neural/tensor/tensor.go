package tensor

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync/atomic"
)

// Operation represents an operation in the computation graph.
type Operation interface {
	Inputs() []*Tensor
	Backward(grad *Tensor) error
}

// Tensor represents a multi-dimensional array of float64 values.
type Tensor struct {
	Data         []float64
	Shape        []int
	Grad         *Tensor
	Creator      Operation
	RequiresGrad bool
}

// gradDisabled counts nested NoGrad calls.
var gradDisabled atomic.Int32

// NoGrad runs fn without recording operations in the computation graph.
func NoGrad(fn func()) {
	gradDisabled.Add(1)
	defer gradDisabled.Add(-1)
	fn()
}

// GradEnabled reports whether new operations are recorded for backprop.
func GradEnabled() bool {
	return gradDisabled.Load() == 0
}

// NewTensor creates a new Tensor with the given shape and optional data.
func NewTensor(shape []int, data []float64, requiresGrad bool) *Tensor {
	if data == nil {
		data = make([]float64, numElements(shape))
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{
		Data:         data,
		Shape:        s,
		RequiresGrad: requiresGrad,
	}
}

// Zeros returns a tensor of the given shape filled with zeros.
func Zeros(shape ...int) *Tensor {
	return NewTensor(shape, nil, false)
}

// GobEncode implements the gob.GobEncoder interface. Only data, shape and the
// grad flag are persisted; the graph is rebuilt on the next forward pass.
func (t *Tensor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(t.Data); err != nil {
		return nil, err
	}
	if err := enc.Encode(t.Shape); err != nil {
		return nil, err
	}
	if err := enc.Encode(t.RequiresGrad); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface.
func (t *Tensor) GobDecode(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&t.Data); err != nil {
		return err
	}
	if err := dec.Decode(&t.Shape); err != nil {
		return err
	}
	if err := dec.Decode(&t.RequiresGrad); err != nil {
		return err
	}
	if len(t.Data) != numElements(t.Shape) {
		return fmt.Errorf("decoded tensor has %d values for shape %v", len(t.Data), t.Shape)
	}
	return nil
}

// Item returns the single value held by a one-element tensor.
func (t *Tensor) Item() (float64, error) {
	if len(t.Data) != 1 {
		return 0, fmt.Errorf("Item called on tensor with shape %v", t.Shape)
	}
	return t.Data[0], nil
}

// ZeroGrad resets the gradient of the tensor to zeros.
func (t *Tensor) ZeroGrad() {
	if !t.RequiresGrad {
		return
	}
	if t.Grad == nil {
		t.Grad = NewTensor(t.Shape, nil, false)
		return
	}
	for i := range t.Grad.Data {
		t.Grad.Data[i] = 0
	}
}

// Backward performs backpropagation starting from this tensor, which must be
// a scalar. Gradients accumulate into every reachable tensor that requires them.
func (t *Tensor) Backward() error {
	if len(t.Data) != 1 {
		return fmt.Errorf("backward must start from a scalar, got shape %v", t.Shape)
	}
	if !t.RequiresGrad {
		return fmt.Errorf("backward called on a tensor that does not require grad")
	}

	topo := topologicalOrder(t)

	if t.Grad == nil {
		t.Grad = NewTensor(t.Shape, nil, false)
	}
	t.Grad.Data[0] = 1

	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		if v.Creator == nil || v.Grad == nil {
			continue
		}
		if err := v.Creator.Backward(v.Grad); err != nil {
			return fmt.Errorf("error during backward pass for tensor with shape %v: %w", v.Shape, err)
		}
	}
	return nil
}

// topologicalOrder returns every tensor reachable from root such that each
// tensor appears after all of its inputs.
func topologicalOrder(root *Tensor) []*Tensor {
	type frame struct {
		t        *Tensor
		expanded bool
	}
	var topo []*Tensor
	visited := map[*Tensor]bool{}
	stack := []frame{{t: root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.expanded {
			topo = append(topo, f.t)
			continue
		}
		if visited[f.t] {
			continue
		}
		visited[f.t] = true
		stack = append(stack, frame{t: f.t, expanded: true})
		if f.t.Creator != nil {
			for _, in := range f.t.Creator.Inputs() {
				if in != nil && !visited[in] {
					stack = append(stack, frame{t: in})
				}
			}
		}
	}
	return topo
}

// accumulateGrad adds delta into t.Grad, allocating it on first use.
func accumulateGrad(t *Tensor, delta []float64) {
	if !t.RequiresGrad {
		return
	}
	if t.Grad == nil {
		t.Grad = NewTensor(t.Shape, nil, false)
	}
	for i, d := range delta {
		t.Grad.Data[i] += d
	}
}

// tracked reports whether an op over inputs must record a creator.
func tracked(inputs ...*Tensor) bool {
	if !GradEnabled() {
		return false
	}
	for _, in := range inputs {
		if in.RequiresGrad {
			return true
		}
	}
	return false
}

func numElements(shape []int) int {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

// compareShapes is a helper function to compare two shapes.
func compareShapes(s1, s2 []int) bool {
	if len(s1) != len(s2) {
		return false
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			return false
		}
	}
	return true
}

// splitAxis returns the product of dims before axis, the axis size, and the
// product of dims after it.
func splitAxis(shape []int, axis int) (outer, dim, inner int) {
	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[axis], inner
}

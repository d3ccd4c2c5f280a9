package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Add performs element-wise addition of two tensors.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	if !compareShapes(t.Shape, other.Shape) {
		return nil, fmt.Errorf("mismatched shapes for Add operation: %v and %v", t.Shape, other.Shape)
	}
	resultData := make([]float64, len(t.Data))
	for i := range t.Data {
		resultData[i] = t.Data[i] + other.Data[i]
	}
	result := NewTensor(t.Shape, resultData, tracked(t, other))
	if result.RequiresGrad {
		result.Creator = &AddOperation{t, other}
	}
	return result, nil
}

// AddOperation represents the addition operation for backward pass.
type AddOperation struct {
	A *Tensor
	B *Tensor
}

func (op *AddOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *AddOperation) Backward(grad *Tensor) error {
	accumulateGrad(op.A, grad.Data)
	accumulateGrad(op.B, grad.Data)
	return nil
}

// AddWithBroadcast adds a 1-D bias of length n to every row of a [m, n] tensor.
func (t *Tensor) AddWithBroadcast(bias *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 || len(bias.Shape) != 1 || t.Shape[1] != bias.Shape[0] {
		return nil, fmt.Errorf("cannot broadcast %v onto %v", bias.Shape, t.Shape)
	}
	rows, cols := t.Shape[0], t.Shape[1]
	resultData := make([]float64, len(t.Data))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			resultData[r*cols+c] = t.Data[r*cols+c] + bias.Data[c]
		}
	}
	result := NewTensor(t.Shape, resultData, tracked(t, bias))
	if result.RequiresGrad {
		result.Creator = &AddWithBroadcastOperation{t, bias}
	}
	return result, nil
}

// AddWithBroadcastOperation represents a row-broadcast bias addition.
type AddWithBroadcastOperation struct {
	Input *Tensor
	Bias  *Tensor
}

func (op *AddWithBroadcastOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input, op.Bias}
}

func (op *AddWithBroadcastOperation) Backward(grad *Tensor) error {
	accumulateGrad(op.Input, grad.Data)
	if op.Bias.RequiresGrad {
		cols := op.Bias.Shape[0]
		sum := make([]float64, cols)
		for i, g := range grad.Data {
			sum[i%cols] += g
		}
		accumulateGrad(op.Bias, sum)
	}
	return nil
}

// Mul performs element-wise multiplication of two tensors.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	if !compareShapes(t.Shape, other.Shape) {
		return nil, fmt.Errorf("mismatched shapes for Mul operation: %v and %v", t.Shape, other.Shape)
	}
	resultData := make([]float64, len(t.Data))
	for i := range t.Data {
		resultData[i] = t.Data[i] * other.Data[i]
	}
	result := NewTensor(t.Shape, resultData, tracked(t, other))
	if result.RequiresGrad {
		result.Creator = &MulOperation{t, other}
	}
	return result, nil
}

// MulOperation represents element-wise multiplication for backward pass.
type MulOperation struct {
	A *Tensor
	B *Tensor
}

func (op *MulOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *MulOperation) Backward(grad *Tensor) error {
	if op.A.RequiresGrad {
		d := make([]float64, len(grad.Data))
		for i, g := range grad.Data {
			d[i] = g * op.B.Data[i]
		}
		accumulateGrad(op.A, d)
	}
	if op.B.RequiresGrad {
		d := make([]float64, len(grad.Data))
		for i, g := range grad.Data {
			d[i] = g * op.A.Data[i]
		}
		accumulateGrad(op.B, d)
	}
	return nil
}

// Sigmoid applies the logistic function element-wise.
func (t *Tensor) Sigmoid() (*Tensor, error) {
	resultData := make([]float64, len(t.Data))
	for i, v := range t.Data {
		resultData[i] = 1 / (1 + math.Exp(-v))
	}
	result := NewTensor(t.Shape, resultData, tracked(t))
	if result.RequiresGrad {
		result.Creator = &SigmoidOperation{Input: t, Output: result}
	}
	return result, nil
}

// SigmoidOperation represents the sigmoid activation for backward pass.
type SigmoidOperation struct {
	Input  *Tensor
	Output *Tensor
}

func (op *SigmoidOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *SigmoidOperation) Backward(grad *Tensor) error {
	d := make([]float64, len(grad.Data))
	for i, g := range grad.Data {
		s := op.Output.Data[i]
		d[i] = g * s * (1 - s)
	}
	accumulateGrad(op.Input, d)
	return nil
}

// Tanh applies the hyperbolic tangent element-wise.
func (t *Tensor) Tanh() (*Tensor, error) {
	resultData := make([]float64, len(t.Data))
	for i, v := range t.Data {
		resultData[i] = math.Tanh(v)
	}
	result := NewTensor(t.Shape, resultData, tracked(t))
	if result.RequiresGrad {
		result.Creator = &TanhOperation{Input: t, Output: result}
	}
	return result, nil
}

// TanhOperation represents the tanh activation for backward pass.
type TanhOperation struct {
	Input  *Tensor
	Output *Tensor
}

func (op *TanhOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *TanhOperation) Backward(grad *Tensor) error {
	d := make([]float64, len(grad.Data))
	for i, g := range grad.Data {
		y := op.Output.Data[i]
		d[i] = g * (1 - y*y)
	}
	accumulateGrad(op.Input, d)
	return nil
}

// MatMul performs 2-D matrix multiplication with another Tensor.
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 || len(other.Shape) != 2 {
		return nil, fmt.Errorf("MatMul only supports 2D tensors. Got %v and %v", t.Shape, other.Shape)
	}
	if t.Shape[1] != other.Shape[0] {
		return nil, fmt.Errorf("incompatible shapes for 2D matrix multiplication: %v and %v", t.Shape, other.Shape)
	}
	rows, inner, cols := t.Shape[0], t.Shape[1], other.Shape[1]
	if rows == 0 || inner == 0 || cols == 0 {
		return nil, fmt.Errorf("MatMul on empty tensors: %v and %v", t.Shape, other.Shape)
	}

	resultData := make([]float64, rows*cols)
	c := mat.NewDense(rows, cols, resultData)
	c.Mul(mat.NewDense(rows, inner, t.Data), mat.NewDense(inner, cols, other.Data))

	result := NewTensor([]int{rows, cols}, resultData, tracked(t, other))
	if result.RequiresGrad {
		result.Creator = &MatmulOperation{t, other}
	}
	return result, nil
}

// MatmulOperation represents the matrix multiplication operation for backward pass.
type MatmulOperation struct {
	A *Tensor
	B *Tensor
}

func (op *MatmulOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *MatmulOperation) Backward(grad *Tensor) error {
	rows, inner, cols := op.A.Shape[0], op.A.Shape[1], op.B.Shape[1]
	g := mat.NewDense(rows, cols, grad.Data)

	// dL/dA = grad * B^T
	if op.A.RequiresGrad {
		gradA := make([]float64, rows*inner)
		mat.NewDense(rows, inner, gradA).Mul(g, mat.NewDense(inner, cols, op.B.Data).T())
		accumulateGrad(op.A, gradA)
	}
	// dL/dB = A^T * grad
	if op.B.RequiresGrad {
		gradB := make([]float64, inner*cols)
		mat.NewDense(inner, cols, gradB).Mul(mat.NewDense(rows, inner, op.A.Data).T(), g)
		accumulateGrad(op.B, gradB)
	}
	return nil
}

// Slice returns the sub-tensor [start, end) along axis.
func (t *Tensor) Slice(axis, start, end int) (*Tensor, error) {
	if axis < 0 || axis >= len(t.Shape) {
		return nil, fmt.Errorf("axis %d out of bounds for tensor with shape %v", axis, t.Shape)
	}
	if start < 0 || end > t.Shape[axis] || start > end {
		return nil, fmt.Errorf("invalid slice indices for axis %d: start %d, end %d for dimension size %d", axis, start, end, t.Shape[axis])
	}

	outer, dim, inner := splitAxis(t.Shape, axis)
	width := end - start
	newShape := make([]int, len(t.Shape))
	copy(newShape, t.Shape)
	newShape[axis] = width

	resultData := make([]float64, outer*width*inner)
	for o := 0; o < outer; o++ {
		src := t.Data[(o*dim+start)*inner : (o*dim+end)*inner]
		copy(resultData[o*width*inner:(o+1)*width*inner], src)
	}

	result := NewTensor(newShape, resultData, tracked(t))
	if result.RequiresGrad {
		result.Creator = &SliceOperation{t, axis, start, end}
	}
	return result, nil
}

// SliceOperation scatters the gradient of a slice back into its source.
type SliceOperation struct {
	Input *Tensor
	Axis  int
	Start int
	End   int
}

func (op *SliceOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *SliceOperation) Backward(grad *Tensor) error {
	if !op.Input.RequiresGrad {
		return nil
	}
	outer, dim, inner := splitAxis(op.Input.Shape, op.Axis)
	width := op.End - op.Start
	d := make([]float64, len(op.Input.Data))
	for o := 0; o < outer; o++ {
		copy(d[(o*dim+op.Start)*inner:(o*dim+op.End)*inner], grad.Data[o*width*inner:(o+1)*width*inner])
	}
	accumulateGrad(op.Input, d)
	return nil
}

// Concat joins tensors along axis. All other dimensions must match.
func Concat(tensors []*Tensor, axis int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Concat needs at least one tensor")
	}
	first := tensors[0]
	if axis < 0 || axis >= len(first.Shape) {
		return nil, fmt.Errorf("axis %d out of bounds for tensor with shape %v", axis, first.Shape)
	}

	total := 0
	for _, t := range tensors {
		if !compareShapesExceptAxis(first.Shape, t.Shape, axis) {
			return nil, fmt.Errorf("cannot concat shapes %v and %v along axis %d", first.Shape, t.Shape, axis)
		}
		total += t.Shape[axis]
	}

	outer, _, inner := splitAxis(first.Shape, axis)
	newShape := make([]int, len(first.Shape))
	copy(newShape, first.Shape)
	newShape[axis] = total

	resultData := make([]float64, outer*total*inner)
	offset := 0
	for _, t := range tensors {
		width := t.Shape[axis]
		for o := 0; o < outer; o++ {
			copy(resultData[(o*total+offset)*inner:(o*total+offset+width)*inner], t.Data[o*width*inner:(o+1)*width*inner])
		}
		offset += width
	}

	result := NewTensor(newShape, resultData, tracked(tensors...))
	if result.RequiresGrad {
		result.Creator = &ConcatOperation{Tensors: tensors, Axis: axis}
	}
	return result, nil
}

// ConcatOperation splits the gradient of a concatenation back to its parts.
type ConcatOperation struct {
	Tensors []*Tensor
	Axis    int
}

func (op *ConcatOperation) Inputs() []*Tensor {
	return op.Tensors
}

func (op *ConcatOperation) Backward(grad *Tensor) error {
	outer, total, inner := splitAxis(grad.Shape, op.Axis)
	offset := 0
	for _, t := range op.Tensors {
		width := t.Shape[op.Axis]
		if t.RequiresGrad {
			d := make([]float64, len(t.Data))
			for o := 0; o < outer; o++ {
				copy(d[o*width*inner:(o+1)*width*inner], grad.Data[(o*total+offset)*inner:(o*total+offset+width)*inner])
			}
			accumulateGrad(t, d)
		}
		offset += width
	}
	return nil
}

func compareShapesExceptAxis(s1, s2 []int, ignoredAxis int) bool {
	if len(s1) != len(s2) {
		return false
	}
	for i := range s1 {
		if i != ignoredAxis && s1[i] != s2[i] {
			return false
		}
	}
	return true
}

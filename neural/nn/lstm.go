package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/golangast/nmt/neural/tensor"
)

// State holds the hidden and cell state of every layer of a stacked LSTM.
// Each entry is [batch, hidden].
type State struct {
	Hidden []*tensor.Tensor
	Cell   []*tensor.Tensor
}

// ZeroState returns an all-zero state for numLayers layers.
func ZeroState(numLayers, batchSize, hiddenSize int) State {
	s := State{
		Hidden: make([]*tensor.Tensor, numLayers),
		Cell:   make([]*tensor.Tensor, numLayers),
	}
	for i := 0; i < numLayers; i++ {
		s.Hidden[i] = tensor.Zeros(batchSize, hiddenSize)
		s.Cell[i] = tensor.Zeros(batchSize, hiddenSize)
	}
	return s
}

// LSTMCell represents a single LSTM cell. Gate columns are ordered
// input, forget, candidate, output.
type LSTMCell struct {
	InputSize  int
	HiddenSize int

	WeightIH *tensor.Tensor // [InputSize, 4*HiddenSize]
	WeightHH *tensor.Tensor // [HiddenSize, 4*HiddenSize]
	BiasIH   *tensor.Tensor // [4*HiddenSize]
	BiasHH   *tensor.Tensor // [4*HiddenSize]
}

// NewLSTMCell creates a new LSTMCell with parameters drawn from
// U(-1/sqrt(hiddenSize), 1/sqrt(hiddenSize)).
func NewLSTMCell(inputSize, hiddenSize int, rng *rand.Rand) (*LSTMCell, error) {
	if inputSize <= 0 || hiddenSize <= 0 {
		return nil, fmt.Errorf("invalid LSTM cell size %dx%d", inputSize, hiddenSize)
	}
	bound := 1 / math.Sqrt(float64(hiddenSize))
	gates := 4 * hiddenSize
	return &LSTMCell{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		WeightIH:   uniformParameter([]int{inputSize, gates}, bound, rng),
		WeightHH:   uniformParameter([]int{hiddenSize, gates}, bound, rng),
		BiasIH:     uniformParameter([]int{gates}, bound, rng),
		BiasHH:     uniformParameter([]int{gates}, bound, rng),
	}, nil
}

// Parameters returns all learnable parameters of the LSTMCell.
func (c *LSTMCell) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.WeightIH, c.WeightHH, c.BiasIH, c.BiasHH}
}

// Forward performs one time step: input [batch, InputSize] with the previous
// hidden and cell state gives the next hidden and cell state.
func (c *LSTMCell) Forward(input, prevHidden, prevCell *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	xw, err := input.MatMul(c.WeightIH)
	if err != nil {
		return nil, nil, fmt.Errorf("LSTMCell.Forward: input projection failed: %w", err)
	}
	xw, err = xw.AddWithBroadcast(c.BiasIH)
	if err != nil {
		return nil, nil, err
	}
	hw, err := prevHidden.MatMul(c.WeightHH)
	if err != nil {
		return nil, nil, fmt.Errorf("LSTMCell.Forward: hidden projection failed: %w", err)
	}
	hw, err = hw.AddWithBroadcast(c.BiasHH)
	if err != nil {
		return nil, nil, err
	}
	gates, err := xw.Add(hw)
	if err != nil {
		return nil, nil, err
	}

	h := c.HiddenSize
	gate := func(k int, activation func(*tensor.Tensor) (*tensor.Tensor, error)) (*tensor.Tensor, error) {
		g, err := gates.Slice(1, k*h, (k+1)*h)
		if err != nil {
			return nil, err
		}
		return activation(g)
	}
	it, err := gate(0, (*tensor.Tensor).Sigmoid)
	if err != nil {
		return nil, nil, err
	}
	ft, err := gate(1, (*tensor.Tensor).Sigmoid)
	if err != nil {
		return nil, nil, err
	}
	gt, err := gate(2, (*tensor.Tensor).Tanh)
	if err != nil {
		return nil, nil, err
	}
	ot, err := gate(3, (*tensor.Tensor).Sigmoid)
	if err != nil {
		return nil, nil, err
	}

	// c' = f*c + i*g
	keep, err := ft.Mul(prevCell)
	if err != nil {
		return nil, nil, err
	}
	write, err := it.Mul(gt)
	if err != nil {
		return nil, nil, err
	}
	ct, err := keep.Add(write)
	if err != nil {
		return nil, nil, err
	}

	// h' = o*tanh(c')
	ctTanh, err := ct.Tanh()
	if err != nil {
		return nil, nil, fmt.Errorf("LSTMCell.Forward: Tanh operation failed: %w", err)
	}
	ht, err := ot.Mul(ctTanh)
	if err != nil {
		return nil, nil, fmt.Errorf("LSTMCell.Forward: Mul operation failed for hidden state: %w", err)
	}
	return ht, ct, nil
}

// LSTM represents a multi-layer LSTM. Dropout is applied to the output of
// every layer except the last while training.
type LSTM struct {
	InputSize  int
	HiddenSize int
	NumLayers  int
	Dropout    float64
	Cells      []*LSTMCell
}

// NewLSTM creates a new LSTM.
func NewLSTM(inputSize, hiddenSize, numLayers int, dropout float64, rng *rand.Rand) (*LSTM, error) {
	if numLayers <= 0 {
		return nil, fmt.Errorf("LSTM needs at least one layer, got %d", numLayers)
	}
	if dropout < 0 || dropout >= 1 {
		return nil, fmt.Errorf("LSTM dropout must be in [0, 1), got %v", dropout)
	}
	cells := make([]*LSTMCell, numLayers)
	for i := range cells {
		layerInputSize := inputSize
		if i > 0 {
			layerInputSize = hiddenSize
		}
		cell, err := NewLSTMCell(layerInputSize, hiddenSize, rng)
		if err != nil {
			return nil, fmt.Errorf("failed to create LSTM layer %d: %w", i, err)
		}
		cells[i] = cell
	}
	return &LSTM{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		NumLayers:  numLayers,
		Dropout:    dropout,
		Cells:      cells,
	}, nil
}

// Parameters returns all learnable parameters of the LSTM.
func (l *LSTM) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, cell := range l.Cells {
		params = append(params, cell.Parameters()...)
	}
	return params
}

// Step advances every layer by one time step. rng is only consulted when
// training with a non-zero dropout.
func (l *LSTM) Step(input *tensor.Tensor, state State, training bool, rng tensor.Rand) (State, error) {
	if len(state.Hidden) != l.NumLayers || len(state.Cell) != l.NumLayers {
		return State{}, fmt.Errorf("LSTM has %d layers, state has %d hidden and %d cell tensors", l.NumLayers, len(state.Hidden), len(state.Cell))
	}
	next := State{
		Hidden: make([]*tensor.Tensor, l.NumLayers),
		Cell:   make([]*tensor.Tensor, l.NumLayers),
	}
	layerInput := input
	for i, cell := range l.Cells {
		ht, ct, err := cell.Forward(layerInput, state.Hidden[i], state.Cell[i])
		if err != nil {
			return State{}, fmt.Errorf("LSTM layer %d: %w", i, err)
		}
		next.Hidden[i], next.Cell[i] = ht, ct

		layerInput = ht
		if training && l.Dropout > 0 && i < l.NumLayers-1 {
			layerInput, err = tensor.Dropout(ht, l.Dropout, rng)
			if err != nil {
				return State{}, err
			}
		}
	}
	return next, nil
}

package seq2seq

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/golangast/nmt/neural/nn"
	"github.com/golangast/nmt/neural/tensor"
)

var (
	// ErrHiddenDimMismatch is returned when encoder and decoder disagree on the hidden size.
	ErrHiddenDimMismatch = errors.New("hidden dimensions of encoder and decoder must be equal")
	// ErrLayerMismatch is returned when encoder and decoder disagree on the layer count.
	ErrLayerMismatch = errors.New("encoder and decoder must have equal number of layers")
)

// Encoder represents the encoder part of the Seq2Seq model.
type Encoder struct {
	InputDim  int
	EmbDim    int
	HidDim    int
	NLayers   int
	Dropout   float64
	Embedding *nn.Embedding
	LSTM      *nn.LSTM

	training bool
	rng      tensor.Rand
}

// NewEncoder creates a new Encoder over a source vocabulary of inputDim tokens.
func NewEncoder(inputDim, embDim, hidDim, nLayers int, dropout float64, rng *rand.Rand) (*Encoder, error) {
	embedding, err := nn.NewEmbedding(inputDim, embDim, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding for encoder: %w", err)
	}
	lstm, err := nn.NewLSTM(embDim, hidDim, nLayers, dropout, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create LSTM for encoder: %w", err)
	}
	return &Encoder{
		InputDim:  inputDim,
		EmbDim:    embDim,
		HidDim:    hidDim,
		NLayers:   nLayers,
		Dropout:   dropout,
		Embedding: embedding,
		LSTM:      lstm,
		rng:       rng,
	}, nil
}

// Forward runs the source batch through the encoder. src is time-major,
// src[t][b]. Only the final hidden and cell state of every layer is returned.
func (e *Encoder) Forward(src [][]int) (nn.State, error) {
	if len(src) == 0 || len(src[0]) == 0 {
		return nn.State{}, errors.New("encoder: empty source batch")
	}
	batchSize := len(src[0])
	state := nn.ZeroState(e.NLayers, batchSize, e.HidDim)

	for t, ids := range src {
		if len(ids) != batchSize {
			return nn.State{}, fmt.Errorf("encoder: step %d has %d rows, want %d", t, len(ids), batchSize)
		}
		embedded, err := e.Embedding.Forward(ids)
		if err != nil {
			return nn.State{}, fmt.Errorf("encoder embedding forward failed: %w", err)
		}
		if e.training {
			embedded, err = tensor.Dropout(embedded, e.Dropout, e.rng)
			if err != nil {
				return nn.State{}, err
			}
		}
		state, err = e.LSTM.Step(embedded, state, e.training, e.rng)
		if err != nil {
			return nn.State{}, fmt.Errorf("encoder LSTM forward failed at step %d: %w", t, err)
		}
	}
	return state, nil
}

// Parameters returns all learnable parameters of the Encoder.
func (e *Encoder) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{}
	params = append(params, e.Embedding.Parameters()...)
	params = append(params, e.LSTM.Parameters()...)
	return params
}

// Decoder represents the decoder part of the Seq2Seq model.
type Decoder struct {
	OutputDim int
	EmbDim    int
	HidDim    int
	NLayers   int
	Dropout   float64
	Embedding *nn.Embedding
	LSTM      *nn.LSTM
	Output    *nn.Linear

	training bool
	rng      tensor.Rand
}

// NewDecoder creates a new Decoder predicting over outputDim target tokens.
func NewDecoder(outputDim, embDim, hidDim, nLayers int, dropout float64, rng *rand.Rand) (*Decoder, error) {
	embedding, err := nn.NewEmbedding(outputDim, embDim, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding for decoder: %w", err)
	}
	lstm, err := nn.NewLSTM(embDim, hidDim, nLayers, dropout, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create LSTM for decoder: %w", err)
	}
	outputLayer, err := nn.NewLinear(hidDim, outputDim, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create output linear layer for decoder: %w", err)
	}
	return &Decoder{
		OutputDim: outputDim,
		EmbDim:    embDim,
		HidDim:    hidDim,
		NLayers:   nLayers,
		Dropout:   dropout,
		Embedding: embedding,
		LSTM:      lstm,
		Output:    outputLayer,
		rng:       rng,
	}, nil
}

// Forward decodes a single step. input holds one token ID per batch row;
// the prediction is [batch, OutputDim] logits for the next token.
func (d *Decoder) Forward(input []int, state nn.State) (*tensor.Tensor, nn.State, error) {
	embedded, err := d.Embedding.Forward(input)
	if err != nil {
		return nil, nn.State{}, fmt.Errorf("decoder embedding forward failed: %w", err)
	}
	if d.training {
		embedded, err = tensor.Dropout(embedded, d.Dropout, d.rng)
		if err != nil {
			return nil, nn.State{}, err
		}
	}

	next, err := d.LSTM.Step(embedded, state, d.training, d.rng)
	if err != nil {
		return nil, nn.State{}, fmt.Errorf("decoder LSTM forward failed: %w", err)
	}

	// Only the top layer feeds the projection.
	prediction, err := d.Output.Forward(next.Hidden[len(next.Hidden)-1])
	if err != nil {
		return nil, nn.State{}, fmt.Errorf("decoder output linear layer failed: %w", err)
	}
	return prediction, next, nil
}

// Parameters returns all learnable parameters of the Decoder.
func (d *Decoder) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{}
	params = append(params, d.Embedding.Parameters()...)
	params = append(params, d.LSTM.Parameters()...)
	params = append(params, d.Output.Parameters()...)
	return params
}

// Seq2Seq represents the full sequence-to-sequence model.
type Seq2Seq struct {
	Encoder *Encoder
	Decoder *Decoder

	rng      *rand.Rand
	training bool
}

// NewSeq2Seq wires an encoder to a decoder. The encoder's final state seeds
// the decoder directly, so both must share the hidden size and layer count.
// rng drives dropout and the teacher forcing coin.
func NewSeq2Seq(encoder *Encoder, decoder *Decoder, rng *rand.Rand) (*Seq2Seq, error) {
	if encoder.HidDim != decoder.HidDim {
		return nil, fmt.Errorf("%w: %d != %d", ErrHiddenDimMismatch, encoder.HidDim, decoder.HidDim)
	}
	if encoder.NLayers != decoder.NLayers {
		return nil, fmt.Errorf("%w: %d != %d", ErrLayerMismatch, encoder.NLayers, decoder.NLayers)
	}
	encoder.rng = rng
	decoder.rng = rng
	return &Seq2Seq{Encoder: encoder, Decoder: decoder, rng: rng}, nil
}

// Train enables dropout.
func (s *Seq2Seq) Train() { s.setTraining(true) }

// Eval disables dropout.
func (s *Seq2Seq) Eval() { s.setTraining(false) }

// Training reports whether the model is in training mode.
func (s *Seq2Seq) Training() bool { return s.training }

func (s *Seq2Seq) setTraining(on bool) {
	s.training = on
	s.Encoder.training = on
	s.Decoder.training = on
}

// Forward runs a batch through the model. src and trg are time-major and
// trg starts with <sos>. The returned slice has one [batch, OutputDim]
// tensor per target step; index 0 is an unscored zero placeholder.
//
// At every step a single coin decides for the whole batch whether the next
// decoder input is the ground truth token (probability teacherForcingRatio)
// or the decoder's own best guess.
func (s *Seq2Seq) Forward(src, trg [][]int, teacherForcingRatio float64) ([]*tensor.Tensor, error) {
	if len(trg) == 0 || len(trg[0]) == 0 {
		return nil, errors.New("seq2seq: empty target batch")
	}
	batchSize := len(trg[0])
	if len(src) == 0 || len(src[0]) != batchSize {
		return nil, fmt.Errorf("seq2seq: source batch does not match target batch size %d", batchSize)
	}

	outputs := make([]*tensor.Tensor, len(trg))
	outputs[0] = tensor.Zeros(batchSize, s.Decoder.OutputDim)

	state, err := s.Encoder.Forward(src)
	if err != nil {
		return nil, err
	}

	input := trg[0]
	for t := 1; t < len(trg); t++ {
		output, next, err := s.Decoder.Forward(input, state)
		if err != nil {
			return nil, fmt.Errorf("decoder step %d: %w", t, err)
		}
		outputs[t] = output
		state = next

		teacherForce := s.rng.Float64() < teacherForcingRatio
		if teacherForce {
			input = trg[t]
			continue
		}
		input, err = tensor.Argmax(output)
		if err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

// Translate greedily decodes a single numericalized source sentence,
// feeding back the best token until eosID is produced or maxLen tokens have
// been generated. The result excludes <sos> and <eos>. Dropout is off and no
// graph is recorded.
func (s *Seq2Seq) Translate(src []int, sosID, eosID, maxLen int) ([]int, error) {
	if len(src) == 0 {
		return nil, errors.New("seq2seq: empty source sentence")
	}
	wasTraining := s.training
	s.Eval()
	defer s.setTraining(wasTraining)

	column := make([][]int, len(src))
	for t, id := range src {
		column[t] = []int{id}
	}

	var (
		out []int
		err error
	)
	tensor.NoGrad(func() {
		var state nn.State
		state, err = s.Encoder.Forward(column)
		if err != nil {
			return
		}
		input := []int{sosID}
		for len(out) < maxLen {
			var logits *tensor.Tensor
			logits, state, err = s.Decoder.Forward(input, state)
			if err != nil {
				return
			}
			input, err = tensor.Argmax(logits)
			if err != nil {
				return
			}
			if input[0] == eosID {
				return
			}
			out = append(out, input[0])
		}
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	return out, nil
}

// Parameters returns all learnable parameters of the model.
func (s *Seq2Seq) Parameters() []*tensor.Tensor {
	return append(s.Encoder.Parameters(), s.Decoder.Parameters()...)
}

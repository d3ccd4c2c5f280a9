package seq2seq

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/golangast/nmt/neural/nnu/config"
	"github.com/golangast/nmt/neural/nnu/gobs"
	"github.com/golangast/nmt/neural/nnu/vocab"
)

// Checkpoint is everything needed to rebuild a trained model: its
// architecture, weights and both vocabularies.
type Checkpoint struct {
	Config config.ModelConfig
	// TokenizerPath is the pretrained tokenizer.json used for both
	// languages, empty for the built-in word tokenizer.
	TokenizerPath string
	SrcVocab      *vocab.Vocabulary
	TrgVocab      *vocab.Vocabulary
	Encoder       *Encoder
	Decoder       *Decoder
	Epoch         int
	DevLoss       float64
}

// New builds a freshly initialized model for the given vocabulary sizes.
func New(cfg config.ModelConfig, inputDim, outputDim int, rng *rand.Rand) (*Seq2Seq, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	encoder, err := NewEncoder(inputDim, cfg.EncEmbDim, cfg.HidDim, cfg.NLayers, cfg.EncDropout, rng)
	if err != nil {
		return nil, err
	}
	decoder, err := NewDecoder(outputDim, cfg.DecEmbDim, cfg.HidDim, cfg.NLayers, cfg.DecDropout, rng)
	if err != nil {
		return nil, err
	}
	return NewSeq2Seq(encoder, decoder, rng)
}

// NewCheckpoint snapshots model together with the vocabularies it was
// trained on.
func NewCheckpoint(model *Seq2Seq, cfg config.ModelConfig, src, trg *vocab.Vocabulary) *Checkpoint {
	return &Checkpoint{
		Config:   cfg,
		SrcVocab: src,
		TrgVocab: trg,
		Encoder:  model.Encoder,
		Decoder:  model.Decoder,
	}
}

// Save writes the checkpoint to path.
func (c *Checkpoint) Save(path string) error {
	if err := gobs.Save(path, c); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (*Checkpoint, error) {
	var c Checkpoint
	if err := gobs.Load(path, &c); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if c.Encoder == nil || c.Decoder == nil || c.SrcVocab == nil || c.TrgVocab == nil {
		return nil, fmt.Errorf("checkpoint %s is incomplete", path)
	}
	if c.Encoder.InputDim != c.SrcVocab.Size() || c.Decoder.OutputDim != c.TrgVocab.Size() {
		return nil, fmt.Errorf("checkpoint %s: model dims %d/%d do not match vocabularies %d/%d",
			path, c.Encoder.InputDim, c.Decoder.OutputDim, c.SrcVocab.Size(), c.TrgVocab.Size())
	}
	return &c, nil
}

// Model rebuilds the Seq2Seq model in evaluation mode.
func (c *Checkpoint) Model(rng *rand.Rand) (*Seq2Seq, error) {
	model, err := NewSeq2Seq(c.Encoder, c.Decoder, rng)
	if err != nil {
		return nil, err
	}
	model.Eval()
	return model, nil
}

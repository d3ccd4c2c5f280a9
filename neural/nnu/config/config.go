// Package config holds the hyperparameters of a translation run.
package config

import (
	"errors"
	"fmt"
)

// Config holds the configuration for a full training run.
type Config struct {
	Model ModelConfig `json:"model"`
	Train TrainConfig `json:"train"`
	Data  DataConfig  `json:"data"`
}

// ModelConfig fixes the architecture. It is stored in every checkpoint.
type ModelConfig struct {
	EncEmbDim  int     `json:"enc_emb_dim"`
	DecEmbDim  int     `json:"dec_emb_dim"`
	HidDim     int     `json:"hid_dim"`
	NLayers    int     `json:"n_layers"`
	EncDropout float64 `json:"enc_dropout"`
	DecDropout float64 `json:"dec_dropout"`
}

// TrainConfig configures the optimization loop.
type TrainConfig struct {
	Epochs         int     `json:"epochs"`
	BatchSize      int     `json:"batch_size"`
	LearningRate   float64 `json:"learning_rate"`
	Clip           float64 `json:"clip"`
	TeacherForcing float64 `json:"teacher_forcing"`
	Seed           uint64  `json:"seed"`
	CheckpointPath string  `json:"checkpoint_path"`
}

// DataConfig locates and filters the corpus.
type DataConfig struct {
	DataFolder    string `json:"data_folder"`
	Subdir        string `json:"subdir"`
	SrcExt        string `json:"src_ext"`
	TrgExt        string `json:"trg_ext"`
	MinFreq       int    `json:"min_freq"`
	MaxTrgLen     int    `json:"max_trg_len"`
	TokenizerPath string `json:"tokenizer_path"`
}

// DefaultConfig returns the reference German→English setup.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			EncEmbDim:  256,
			DecEmbDim:  256,
			HidDim:     512,
			NLayers:    2,
			EncDropout: 0.5,
			DecDropout: 0.5,
		},
		Train: TrainConfig{
			Epochs:         10,
			BatchSize:      64,
			LearningRate:   0.001,
			Clip:           1,
			TeacherForcing: 0.5,
			Seed:           123,
			CheckpointPath: "neural-seq2seq.gob",
		},
		Data: DataConfig{
			Subdir:    "machine_translation",
			SrcExt:    ".de",
			TrgExt:    ".en",
			MinFreq:   10,
			MaxTrgLen: 25,
		},
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, err)
	}
	t := c.Train
	if t.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("epochs must be positive, got %d", t.Epochs))
	}
	if t.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", t.BatchSize))
	}
	if t.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning rate must be positive, got %v", t.LearningRate))
	}
	if t.Clip <= 0 {
		errs = append(errs, fmt.Errorf("clip must be positive, got %v", t.Clip))
	}
	if t.TeacherForcing < 0 || t.TeacherForcing > 1 {
		errs = append(errs, fmt.Errorf("teacher forcing ratio must be in [0, 1], got %v", t.TeacherForcing))
	}
	if t.CheckpointPath == "" {
		errs = append(errs, errors.New("checkpoint path is required"))
	}
	d := c.Data
	if d.DataFolder == "" {
		errs = append(errs, errors.New("data folder is required"))
	}
	if d.MinFreq < 1 {
		errs = append(errs, fmt.Errorf("min freq must be at least 1, got %d", d.MinFreq))
	}
	if d.MaxTrgLen <= 0 {
		errs = append(errs, fmt.Errorf("max target length must be positive, got %d", d.MaxTrgLen))
	}
	return errors.Join(errs...)
}

// Validate checks the architecture hyperparameters.
func (m ModelConfig) Validate() error {
	var errs []error
	if m.EncEmbDim <= 0 || m.DecEmbDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding dims must be positive, got %d and %d", m.EncEmbDim, m.DecEmbDim))
	}
	if m.HidDim <= 0 {
		errs = append(errs, fmt.Errorf("hidden dim must be positive, got %d", m.HidDim))
	}
	if m.NLayers <= 0 {
		errs = append(errs, fmt.Errorf("layer count must be positive, got %d", m.NLayers))
	}
	for _, p := range []float64{m.EncDropout, m.DecDropout} {
		if p < 0 || p >= 1 {
			errs = append(errs, fmt.Errorf("dropout must be in [0, 1), got %v", p))
		}
	}
	return errors.Join(errs...)
}

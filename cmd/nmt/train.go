package main

import (
	"fmt"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/golangast/nmt/neural/nn"
	"github.com/golangast/nmt/neural/nnu/config"
	"github.com/golangast/nmt/neural/nnu/dataset"
	"github.com/golangast/nmt/neural/nnu/seq2seq"
	"github.com/golangast/nmt/neural/nnu/train"
)

func newTrainCommand() *cobra.Command {
	cfg := config.DefaultConfig()
	var dropout float64

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on DIR/machine_translation/{train,dev}.{de,en}",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("dropout") {
				cfg.Model.EncDropout, cfg.Model.DecDropout = dropout, dropout
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runTrain(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Data.DataFolder, "data-folder", cfg.Data.DataFolder, "Folder containing machine_translation/")
	f.StringVar(&cfg.Data.TokenizerPath, "tokenizer", cfg.Data.TokenizerPath, "Optional pretrained tokenizer.json")
	f.IntVar(&cfg.Data.MinFreq, "min-freq", cfg.Data.MinFreq, "Minimum token frequency for the vocabularies")
	f.IntVar(&cfg.Data.MaxTrgLen, "max-trg-len", cfg.Data.MaxTrgLen, "Drop training pairs whose target has more tokens")
	f.IntVar(&cfg.Model.EncEmbDim, "enc-emb-dim", cfg.Model.EncEmbDim, "Encoder embedding size")
	f.IntVar(&cfg.Model.DecEmbDim, "dec-emb-dim", cfg.Model.DecEmbDim, "Decoder embedding size")
	f.IntVar(&cfg.Model.HidDim, "hid-dim", cfg.Model.HidDim, "LSTM hidden size")
	f.IntVar(&cfg.Model.NLayers, "n-layers", cfg.Model.NLayers, "Number of stacked LSTM layers")
	f.Float64Var(&dropout, "dropout", cfg.Model.EncDropout, "Dropout probability for encoder and decoder")
	f.IntVar(&cfg.Train.BatchSize, "batch-size", cfg.Train.BatchSize, "Batch size")
	f.IntVar(&cfg.Train.Epochs, "epochs", cfg.Train.Epochs, "Number of training epochs")
	f.Float64Var(&cfg.Train.Clip, "clip", cfg.Train.Clip, "Maximum global gradient norm")
	f.Float64Var(&cfg.Train.TeacherForcing, "teacher-forcing", cfg.Train.TeacherForcing, "Teacher forcing ratio during training")
	f.Float64Var(&cfg.Train.LearningRate, "learning-rate", cfg.Train.LearningRate, "Adam learning rate")
	f.Uint64Var(&cfg.Train.Seed, "seed", cfg.Train.Seed, "Seed for the random number generator")
	f.StringVar(&cfg.Train.CheckpointPath, "checkpoint", cfg.Train.CheckpointPath, "Where to save the best model")
	cmd.MarkFlagRequired("data-folder")
	return cmd
}

func runTrain(cmd *cobra.Command, cfg *config.Config) error {
	rng := rand.New(rand.NewSource(cfg.Train.Seed))

	src, trg, err := newFields(cfg.Data.TokenizerPath)
	if err != nil {
		return err
	}
	trainData, devData, err := loadCorpus(cfg.Data, src, trg)
	if err != nil {
		return err
	}
	logger.Debug("sample example", "example", spew.Sdump(trainData.Examples[0]))

	src.BuildVocab(trainData.Sources(), cfg.Data.MinFreq)
	trg.BuildVocab(trainData.Targets(), cfg.Data.MinFreq)
	logger.Info("built vocabularies", "de", src.Vocab.Size(), "en", trg.Vocab.Size())

	model, err := seq2seq.New(cfg.Model, src.Vocab.Size(), trg.Vocab.Size(), rng)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}
	logger.Info("model ready", "trainable_parameters", nn.CountParameters(model.Parameters()))

	trainIter, err := dataset.NewBucketIterator(trainData, cfg.Train.BatchSize, true, src, trg, rng)
	if err != nil {
		return err
	}
	devIter, err := dataset.NewBucketIterator(devData, cfg.Train.BatchSize, false, src, trg, rng)
	if err != nil {
		return err
	}
	logger.Info("batches per epoch", "train", trainIter.Len(), "dev", devIter.Len())

	tr := train.New(model, cfg.Train, trg.Vocab.PadID, logger)
	tr.SaveCheckpoint = func(epoch int, devLoss float64) error {
		ckpt := seq2seq.NewCheckpoint(model, cfg.Model, src.Vocab, trg.Vocab)
		ckpt.TokenizerPath = cfg.Data.TokenizerPath
		ckpt.Epoch, ckpt.DevLoss = epoch, devLoss
		return ckpt.Save(cfg.Train.CheckpointPath)
	}

	best, err := tr.Run(cmd.Context(), trainIter, devIter)
	if err != nil {
		return err
	}
	logger.Info("training finished", "best_dev_loss", fmt.Sprintf("%.3f", best), "checkpoint", cfg.Train.CheckpointPath)
	return nil
}

// loadCorpus reads the train and dev splits and drops pairs from both whose
// target is longer than MaxTrgLen tokens.
func loadCorpus(cfg config.DataConfig, src, trg *dataset.Field) (*dataset.TranslationDataset, *dataset.TranslationDataset, error) {
	base := filepath.Join(cfg.DataFolder, cfg.Subdir)
	trainData, err := dataset.LoadTranslationDataset(filepath.Join(base, "train"), cfg.SrcExt, cfg.TrgExt, src, trg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load training data: %w", err)
	}
	devData, err := dataset.LoadTranslationDataset(filepath.Join(base, "dev"), cfg.SrcExt, cfg.TrgExt, src, trg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dev data: %w", err)
	}

	trainRemoved := trainData.FilterLongTargets(cfg.MaxTrgLen)
	devRemoved := devData.FilterLongTargets(cfg.MaxTrgLen)
	logger.Info("loaded data",
		"train", len(trainData.Examples), "dev", len(devData.Examples),
		"train_filtered", trainRemoved, "dev_filtered", devRemoved)
	if len(trainData.Examples) == 0 || len(devData.Examples) == 0 {
		return nil, nil, fmt.Errorf("no pairs left with targets of at most %d tokens: %w", cfg.MaxTrgLen, dataset.ErrEmptyDataset)
	}
	return trainData, devData, nil
}

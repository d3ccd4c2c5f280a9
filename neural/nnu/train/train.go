// Package train runs the optimization loop for the translation model.
package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/golangast/nmt/neural/nn"
	"github.com/golangast/nmt/neural/nnu/config"
	"github.com/golangast/nmt/neural/nnu/dataset"
	"github.com/golangast/nmt/neural/nnu/seq2seq"
	"github.com/golangast/nmt/neural/tensor"
)

// BatchSource yields the batches of one epoch.
type BatchSource interface {
	Batches() []dataset.Batch
}

// Trainer holds the model together with everything needed to optimize it.
type Trainer struct {
	Model          *seq2seq.Seq2Seq
	Optimizer      nn.Optimizer
	Clip           float64
	TeacherForcing float64
	Epochs         int
	// PadID is the target padding token; it is never scored.
	PadID  int
	Logger *log.Logger
	// SaveCheckpoint is called after every epoch that improves the dev loss.
	SaveCheckpoint func(epoch int, devLoss float64) error

	params []*tensor.Tensor
}

// New creates a Trainer with an Adam optimizer over all model parameters.
func New(model *seq2seq.Seq2Seq, cfg config.TrainConfig, padID int, logger *log.Logger) *Trainer {
	params := model.Parameters()
	return &Trainer{
		Model:          model,
		Optimizer:      nn.NewAdam(params, cfg.LearningRate),
		Clip:           cfg.Clip,
		TeacherForcing: cfg.TeacherForcing,
		Epochs:         cfg.Epochs,
		PadID:          padID,
		Logger:         logger,
		params:         params,
	}
}

// BatchLoss runs one batch through the model and scores every target step
// after <sos>, ignoring padding.
func (tr *Trainer) BatchLoss(batch dataset.Batch, teacherForcingRatio float64) (*tensor.Tensor, error) {
	if len(batch.Trg) < 2 {
		return nil, errors.New("target batch has no tokens after <sos>")
	}
	outputs, err := tr.Model.Forward(batch.Src, batch.Trg, teacherForcingRatio)
	if err != nil {
		return nil, err
	}

	// [(trgLen-1)*batch, outputDim], time-major like the targets below.
	logits, err := tensor.Concat(outputs[1:], 0)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten outputs: %w", err)
	}
	targets := make([]int, 0, (len(batch.Trg)-1)*batch.Size)
	for _, row := range batch.Trg[1:] {
		targets = append(targets, row...)
	}
	return tensor.CrossEntropy(logits, targets, tr.PadID)
}

// TrainEpoch makes one pass over the training batches and returns the mean
// batch loss.
func (tr *Trainer) TrainEpoch(ctx context.Context, it BatchSource) (float64, error) {
	tr.Model.Train()
	batches := it.Batches()
	if len(batches) == 0 {
		return 0, errors.New("no training batches")
	}

	epochLoss := 0.0
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		tr.Optimizer.ZeroGrad()

		loss, err := tr.BatchLoss(batch, tr.TeacherForcing)
		if err != nil {
			return 0, fmt.Errorf("batch %d: %w", i, err)
		}
		if err := loss.Backward(); err != nil {
			return 0, fmt.Errorf("batch %d backward: %w", i, err)
		}
		nn.ClipGradNorm(tr.params, tr.Clip)
		tr.Optimizer.Step()

		value, err := loss.Item()
		if err != nil {
			return 0, err
		}
		tr.Logger.Info("batch", "index", i, "loss", value)
		epochLoss += value
	}
	return epochLoss / float64(len(batches)), nil
}

// Evaluate returns the mean batch loss without dropout, gradients or
// teacher forcing.
func (tr *Trainer) Evaluate(ctx context.Context, it BatchSource) (float64, error) {
	tr.Model.Eval()
	batches := it.Batches()
	if len(batches) == 0 {
		return 0, errors.New("no evaluation batches")
	}

	var (
		epochLoss float64
		err       error
	)
	tensor.NoGrad(func() {
		for i, batch := range batches {
			if err = ctx.Err(); err != nil {
				return
			}
			var loss *tensor.Tensor
			loss, err = tr.BatchLoss(batch, 0)
			if err != nil {
				err = fmt.Errorf("batch %d: %w", i, err)
				return
			}
			var value float64
			value, err = loss.Item()
			if err != nil {
				return
			}
			epochLoss += value
		}
	})
	if err != nil {
		return 0, err
	}
	return epochLoss / float64(len(batches)), nil
}

// EpochTime splits the time between start and end into whole minutes and
// seconds.
func EpochTime(start, end time.Time) (mins, secs int) {
	elapsed := int(end.Sub(start) / time.Second)
	return elapsed / 60, elapsed % 60
}

// Run trains for tr.Epochs epochs, evaluating on dev after each one, and
// returns the best dev loss seen.
func (tr *Trainer) Run(ctx context.Context, trainIter, devIter BatchSource) (float64, error) {
	bestDevLoss := math.Inf(1)
	for epoch := 1; epoch <= tr.Epochs; epoch++ {
		start := time.Now()

		trainLoss, err := tr.TrainEpoch(ctx, trainIter)
		if err != nil {
			return bestDevLoss, fmt.Errorf("epoch %d training: %w", epoch, err)
		}
		devLoss, err := tr.Evaluate(ctx, devIter)
		if err != nil {
			return bestDevLoss, fmt.Errorf("epoch %d evaluation: %w", epoch, err)
		}

		mins, secs := EpochTime(start, time.Now())
		tr.Logger.Info(fmt.Sprintf("Epoch: %02d | Time: %dm %ds", epoch, mins, secs))
		tr.Logger.Info("train", "loss", fmt.Sprintf("%.3f", trainLoss), "ppl", fmt.Sprintf("%7.3f", math.Exp(trainLoss)))
		tr.Logger.Info("dev", "loss", fmt.Sprintf("%.3f", devLoss), "ppl", fmt.Sprintf("%7.3f", math.Exp(devLoss)))

		if devLoss < bestDevLoss {
			bestDevLoss = devLoss
			if tr.SaveCheckpoint != nil {
				if err := tr.SaveCheckpoint(epoch, devLoss); err != nil {
					return bestDevLoss, err
				}
				tr.Logger.Debug("checkpoint saved", "epoch", epoch, "dev_loss", devLoss)
			}
		}
	}
	return bestDevLoss, nil
}

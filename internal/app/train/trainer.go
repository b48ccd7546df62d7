package train

import (
	"context"
	"math/rand"
	"os"
	"time"

	"github.com/airenas/sumtrainer/internal/pkg/checkpoint"
	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/airenas/sumtrainer/internal/pkg/dataset"
	"github.com/airenas/sumtrainer/internal/pkg/distribute"
	"github.com/airenas/sumtrainer/internal/pkg/metrics"
	"github.com/airenas/sumtrainer/internal/pkg/model"
	"github.com/airenas/sumtrainer/internal/pkg/optimizer"
	"github.com/pkg/errors"
)

type batchSource interface {
	Epoch() []*dataset.Batch
	NumBatches() int
}

type stepObserver interface {
	ObserveStep(lr float64, d time.Duration)
}

// Trainer runs the epoch loop
type Trainer struct {
	RunID          string
	Model          *model.Transformer
	Optimizer      *optimizer.Adam
	Strategy       *distribute.MirroredStrategy
	Data           batchSource
	Epochs         int
	StartEpoch     int
	CheckpointPath string
	MaxToKeep      int
	Loss           *metrics.Mean
	Accuracy       *metrics.SparseCategoricalAccuracy
	Reporters      []EpochReporter
	StepObserver   stepObserver

	rngs []*rand.Rand
}

// NewTrainer creates trainer, with dropout on every replica gets own generator seeded from seed
func NewTrainer(m *model.Transformer, opt *optimizer.Adam, s *distribute.MirroredStrategy, data batchSource,
	seed int64, dropout bool) *Trainer {
	res := &Trainer{Model: m, Optimizer: opt, Strategy: s, Data: data, Epochs: 1, StartEpoch: 1, MaxToKeep: 5,
		Loss: &metrics.Mean{}, Accuracy: &metrics.SparseCategoricalAccuracy{}}
	if dropout {
		for i := 0; i < s.NumReplicasInSync(); i++ {
			res.rngs = append(res.rngs, rand.New(rand.NewSource(seed+int64(i)+1)))
		}
	}
	return res
}

// Run trains from StartEpoch up to Epochs, stops between batches when ctx is canceled
func (t *Trainer) Run(ctx context.Context) error {
	nb := t.Data.NumBatches()
	if nb == 0 {
		return errors.New("No batches")
	}
	if t.StartEpoch > t.Epochs {
		cmdapp.Log.Infof("Nothing to do: start epoch %d > epochs %d", t.StartEpoch, t.Epochs)
		return nil
	}
	for epoch := t.StartEpoch; epoch <= t.Epochs; epoch++ {
		start := time.Now()
		t.Loss.Reset()
		t.Accuracy.Reset()
		for b, batch := range t.Data.Epoch() {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := t.TrainStep(ctx, batch)
			if err != nil {
				return errors.Wrapf(err, "Failed epoch %d batch %d", epoch, b+1)
			}
			t.Loss.Update(l)
			if b%2 == 0 {
				cmdapp.Log.Infof("Epoch %d/%d Batch %d/%d", epoch, t.Epochs, b+1, nb)
			}
		}
		res := &EpochResult{RunID: t.RunID, Epoch: epoch, Loss: t.Loss.Result(),
			Accuracy: t.Accuracy.Result(), Duration: time.Since(start)}
		cmdapp.Log.Infof("Epoch %d, Loss: %f, Accuracy: %f", epoch, res.Loss, res.Accuracy*100)
		cmdapp.Log.Infof("Time: %s", res.Duration)

		p, err := t.saveCheckpoint(epoch)
		if err != nil {
			return err
		}
		res.Checkpoint = p
		t.report(ctx, res)
	}
	return nil
}

func (t *Trainer) saveCheckpoint(epoch int) (string, error) {
	dir := checkpoint.EpochDir(t.CheckpointPath, epoch)
	if _, err := os.Stat(dir); err == nil {
		cmdapp.Log.Warnf("Checkpoint dir %s exists, skip saving", dir)
		return "", nil
	} else if !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "Can't check %s", dir)
	}
	m, err := checkpoint.NewManager(dir, t.MaxToKeep)
	if err != nil {
		return "", err
	}
	p, err := m.Save(checkpoint.New(epoch, t.Model.Parameters(), t.Optimizer))
	if err != nil {
		return "", errors.Wrapf(err, "Can't save checkpoint for epoch %d", epoch)
	}
	if err := checkpoint.WriteModelConfig(dir, t.Model.Config()); err != nil {
		return "", err
	}
	cmdapp.Log.Infof("Saving checkpoint for epoch %d at %s", epoch, p)
	return p, nil
}

// Restore loads the newest epoch checkpoint and continues from the next epoch
func (t *Trainer) Restore() error {
	e, err := checkpoint.LatestEpoch(t.CheckpointPath)
	if err != nil {
		return err
	}
	if e == 0 {
		cmdapp.Log.Infof("No checkpoints in %s, starting from scratch", t.CheckpointPath)
		return nil
	}
	dir := checkpoint.EpochDir(t.CheckpointPath, e)
	var cfg model.Config
	if err := checkpoint.ReadModelConfig(dir, &cfg); err != nil {
		return err
	}
	if cfg != t.Model.Config() {
		return errors.Errorf("Model in %s differs from the configured one", dir)
	}
	m, err := checkpoint.NewManager(dir, t.MaxToKeep)
	if err != nil {
		return err
	}
	c, err := m.Restore()
	if err != nil {
		return err
	}
	if err := c.Apply(t.Model.Parameters(), t.Optimizer); err != nil {
		return errors.Wrapf(err, "Can't restore from %s", m.Latest())
	}
	t.StartEpoch = e + 1
	cmdapp.Log.Infof("Restored %s, continue from epoch %d", m.Latest(), t.StartEpoch)
	return nil
}

func (t *Trainer) report(ctx context.Context, res *EpochResult) {
	for _, r := range t.Reporters {
		cmdapp.LogIf(r.Report(ctx, res))
	}
}

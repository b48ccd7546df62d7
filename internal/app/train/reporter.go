package train

import (
	"context"
	"time"

	"github.com/airenas/sumtrainer/internal/pkg/messages"
	"github.com/airenas/sumtrainer/internal/pkg/metrics"
	"github.com/airenas/sumtrainer/internal/pkg/mongo"
	"github.com/pkg/errors"
)

// EpochResult keeps the outcome of one epoch
type EpochResult struct {
	RunID      string
	Epoch      int
	Loss       float64
	Accuracy   float64
	Duration   time.Duration
	Checkpoint string
}

// EpochReporter receives epoch results
type EpochReporter interface {
	Report(ctx context.Context, res *EpochResult) error
}

// EpochSaver persists epoch records
type EpochSaver interface {
	Save(ctx context.Context, rec *mongo.EpochRecord) error
}

type promReporter struct {
	metrics *metrics.Training
}

func (r *promReporter) Report(ctx context.Context, res *EpochResult) error {
	r.metrics.ObserveEpoch(res.Epoch, res.Loss, res.Accuracy)
	return nil
}

type mongoReporter struct {
	saver EpochSaver
}

func (r *mongoReporter) Report(ctx context.Context, res *EpochResult) error {
	return r.saver.Save(ctx, &mongo.EpochRecord{RunID: res.RunID, Epoch: res.Epoch, Loss: res.Loss,
		Accuracy: res.Accuracy, Duration: res.Duration, Checkpoint: res.Checkpoint, Time: time.Now()})
}

type messageReporter struct {
	sender messages.Sender
}

func (r *messageReporter) Report(ctx context.Context, res *EpochResult) error {
	if res.Checkpoint == "" {
		return nil
	}
	msg := messages.NewCheckpointMessage(res.RunID, res.Epoch, res.Checkpoint)
	msg.Loss, msg.Accuracy = res.Loss, res.Accuracy
	return errors.Wrap(r.sender.Send(msg, messages.CheckpointSaved), "Can't send checkpoint event")
}

package mongo

import (
	"context"
	"time"

	"github.com/airenas/sumtrainer/internal/pkg/cmdapp"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

// EpochRecord is a stored result of one training epoch
type EpochRecord struct {
	RunID      string        `bson:"runID"`
	Epoch      int           `bson:"epoch"`
	Loss       float64       `bson:"loss"`
	Accuracy   float64       `bson:"accuracy"`
	Duration   time.Duration `bson:"duration"`
	Checkpoint string        `bson:"checkpoint,omitempty"`
	Time       time.Time     `bson:"time"`
}

type insertFunc func(ctx context.Context, rec *EpochRecord) error

// EpochSaver saves epoch results to mongo db
type EpochSaver struct {
	SessionProvider *SessionProvider
	BackOff         func() backoff.BackOff

	insert insertFunc
}

//NewEpochSaver creates EpochSaver instance
func NewEpochSaver(sessionProvider *SessionProvider) (*EpochSaver, error) {
	if sessionProvider == nil {
		return nil, errors.New("No session provider")
	}
	res := &EpochSaver{SessionProvider: sessionProvider, BackOff: newBackOff}
	res.insert = res.insertOne
	return res, nil
}

// Save saves the record, retries on failure
func (es *EpochSaver) Save(ctx context.Context, rec *EpochRecord) error {
	cmdapp.Log.Debugf("Saving epoch %d of %s", rec.Epoch, rec.RunID)
	op := func() error {
		err := es.insert(ctx, rec)
		if err != nil {
			cmdapp.Log.Warnf("Can't save epoch: %v", err)
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(es.BackOff(), ctx))
	return errors.Wrapf(err, "Can't save epoch %d", rec.Epoch)
}

func (es *EpochSaver) insertOne(ctx context.Context, rec *EpochRecord) error {
	session, err := es.SessionProvider.NewSession()
	if err != nil {
		return err
	}
	defer session.EndSession(context.Background())

	c := session.Client().Database(store).Collection(epochTable)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = c.InsertOne(ctx, rec)
	return err
}

func newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         backoff.DefaultMaxInterval,
		MaxElapsedTime:      45 * time.Second,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

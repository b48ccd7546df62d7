package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestSaver(f insertFunc) *EpochSaver {
	return &EpochSaver{BackOff: func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}, insert: f}
}

func TestNewEpochSaver_Fails(t *testing.T) {
	_, err := NewEpochSaver(nil)
	assert.NotNil(t, err)
}

func TestSave(t *testing.T) {
	var got *EpochRecord
	s := newTestSaver(func(ctx context.Context, rec *EpochRecord) error {
		got = rec
		return nil
	})
	rec := &EpochRecord{RunID: "id", Epoch: 2}
	assert.Nil(t, s.Save(context.Background(), rec))
	assert.Equal(t, rec, got)
}

func TestSave_Retries(t *testing.T) {
	c := 0
	s := newTestSaver(func(ctx context.Context, rec *EpochRecord) error {
		c++
		if c < 3 {
			return errors.New("olia")
		}
		return nil
	})
	assert.Nil(t, s.Save(context.Background(), &EpochRecord{}))
	assert.Equal(t, 3, c)
}

func TestSave_Fails(t *testing.T) {
	c := 0
	s := newTestSaver(func(ctx context.Context, rec *EpochRecord) error {
		c++
		return errors.New("olia")
	})
	assert.NotNil(t, s.Save(context.Background(), &EpochRecord{}))
	assert.Equal(t, 3, c)
}

func TestEpochRecord_BSON(t *testing.T) {
	tm := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err := bson.Marshal(&EpochRecord{RunID: "id", Epoch: 3, Loss: 1.5, Time: tm})
	assert.Nil(t, err)
	var m bson.M
	assert.Nil(t, bson.Unmarshal(b, &m))
	assert.Equal(t, "id", m["runID"])
	assert.EqualValues(t, 3, m["epoch"])
	assert.Equal(t, 1.5, m["loss"])
	_, f := m["checkpoint"]
	assert.False(t, f)
}

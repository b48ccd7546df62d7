package messages

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckpointMessage(t *testing.T) {
	m := NewCheckpointMessage("id", 3, "/ckpt/epoch_3")
	assert.Equal(t, "id", m.RunID)
	assert.Equal(t, 3, m.Epoch)
	assert.Equal(t, "/ckpt/epoch_3", m.Path)
	assert.False(t, m.Time.IsZero())
}

func TestCheckpointMessage_JSON(t *testing.T) {
	m := &CheckpointMessage{RunID: "id", Epoch: 1, Path: "p", Loss: 0.5, Accuracy: 0.25,
		Time: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)}
	b, err := json.Marshal(m)
	assert.Nil(t, err)
	assert.Equal(t, `{"runID":"id","epoch":1,"path":"p","loss":0.5,"accuracy":0.25,"time":"2020-01-02T03:04:05Z"}`, string(b))
}

package messages

import "time"

//CheckpointMessage announces a saved epoch checkpoint
type CheckpointMessage struct {
	RunID    string    `json:"runID"`
	Epoch    int       `json:"epoch"`
	Path     string    `json:"path"`
	Loss     float64   `json:"loss"`
	Accuracy float64   `json:"accuracy"`
	Time     time.Time `json:"time"`
}

//NewCheckpointMessage creates the message
func NewCheckpointMessage(runID string, epoch int, path string) *CheckpointMessage {
	return &CheckpointMessage{RunID: runID, Epoch: epoch, Path: path, Time: time.Now()}
}

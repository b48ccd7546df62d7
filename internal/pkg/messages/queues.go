package messages

const (
	// CheckpointSaved queue
	CheckpointSaved string = "CheckpointSaved"
)

package mongo

const (
	store      = "sumtrainer"
	epochTable = "epochs"
)

var indexData = []IndexData{
	newIndexData(epochTable, "runID", false),
	newIndexData(epochTable, "time", false)}

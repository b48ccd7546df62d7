package model

import (
	"github.com/airenas/sumtrainer/internal/pkg/tensor"
)

// MaskedLoss sums cross entropy of positions where real token is not padding.
// Returns loss node and the number of counted positions.
func MaskedLoss(tp *tensor.Tape, logits *tensor.Node, real []int) (*tensor.Node, int) {
	weights := make([]float64, len(real))
	n := 0
	for i, id := range real {
		if id != 0 {
			weights[i] = 1
			n++
		}
	}
	return tp.SoftmaxCrossEntropy(logits, real, weights), n
}

// Predictions returns argmax id of every logits row
func Predictions(logits *tensor.Node) []int {
	r, _ := logits.Dims()
	res := make([]int, r)
	for i := 0; i < r; i++ {
		row := logits.Value.RawRowView(i)
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		res[i] = best
	}
	return res
}

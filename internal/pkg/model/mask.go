package model

import (
	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"gonum.org/v1/gonum/mat"
)

// PaddingMask returns additive mask of queries x len(keys) blocking key positions with id 0
func PaddingMask(queries int, keys []int) *mat.Dense {
	m := mat.NewDense(queries, len(keys), nil)
	for j, id := range keys {
		if id == 0 {
			for i := 0; i < queries; i++ {
				m.Set(i, j, tensor.MaskValue)
			}
		}
	}
	return m
}

// LookAheadMask returns additive mask blocking positions after the query position
func LookAheadMask(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m.Set(i, j, tensor.MaskValue)
		}
	}
	return m
}

// CombinedMask merges look ahead and target padding masks for decoder self attention
func CombinedMask(target []int) *mat.Dense {
	m := LookAheadMask(len(target))
	for j, id := range target {
		if id == 0 {
			for i := range target {
				m.Set(i, j, tensor.MaskValue)
			}
		}
	}
	return m
}

// Masks keeps all masks needed for one example
type Masks struct {
	Encoder  *mat.Dense
	Combined *mat.Dense
	Decoder  *mat.Dense
}

// CreateMasks prepares encoder padding, combined decoder and cross attention masks
func CreateMasks(inp, tarInp []int) *Masks {
	return &Masks{
		Encoder:  PaddingMask(len(inp), inp),
		Combined: CombinedMask(tarInp),
		Decoder:  PaddingMask(len(tarInp), inp),
	}
}

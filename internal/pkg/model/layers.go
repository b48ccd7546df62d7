package model

import (
	"math"
	"math/rand"
	"sync"

	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const layerNormEps = 1e-6

type paramSet struct {
	list []*tensor.Param
}

func (ps *paramSet) add(p *tensor.Param) *tensor.Param {
	ps.list = append(ps.list, p)
	return p
}

func glorot(rng *rand.Rand, in, out int) func(int, int) float64 {
	limit := math.Sqrt(6 / float64(in+out))
	return func(_, _ int) float64 { return (rng.Float64()*2 - 1) * limit }
}

func uniform(rng *rand.Rand, limit float64) func(int, int) float64 {
	return func(_, _ int) float64 { return (rng.Float64()*2 - 1) * limit }
}

func constant(v float64) func(int, int) float64 {
	return func(_, _ int) float64 { return v }
}

// Dense is a fully connected layer
type Dense struct {
	Kernel *tensor.Param
	Bias   *tensor.Param
}

func newDense(ps *paramSet, name string, in, out int, rng *rand.Rand) *Dense {
	return &Dense{
		Kernel: ps.add(tensor.NewParam(name+"/kernel", in, out, glorot(rng, in, out))),
		Bias:   ps.add(tensor.NewParam(name+"/bias", 1, out, nil)),
	}
}

func (d *Dense) forward(tp *tensor.Tape, x *tensor.Node) *tensor.Node {
	return tp.AddRow(tp.MatMul(x, tp.Param(d.Kernel)), tp.Param(d.Bias))
}

// LayerNorm normalizes the last dimension
type LayerNorm struct {
	Gamma *tensor.Param
	Beta  *tensor.Param
}

func newLayerNorm(ps *paramSet, name string, dim int) *LayerNorm {
	return &LayerNorm{
		Gamma: ps.add(tensor.NewParam(name+"/gamma", 1, dim, constant(1))),
		Beta:  ps.add(tensor.NewParam(name+"/beta", 1, dim, nil)),
	}
}

func (l *LayerNorm) forward(tp *tensor.Tape, x *tensor.Node) *tensor.Node {
	return tp.LayerNorm(x, tp.Param(l.Gamma), tp.Param(l.Beta), layerNormEps)
}

// MultiHeadAttention splits d_model into heads and attends in each of them
type MultiHeadAttention struct {
	numHeads int
	depth    int
	wq       *Dense
	wk       *Dense
	wv       *Dense
	out      *Dense
}

func newMultiHeadAttention(ps *paramSet, name string, dModel, numHeads int, rng *rand.Rand) *MultiHeadAttention {
	return &MultiHeadAttention{
		numHeads: numHeads,
		depth:    dModel / numHeads,
		wq:       newDense(ps, name+"/wq", dModel, dModel, rng),
		wk:       newDense(ps, name+"/wk", dModel, dModel, rng),
		wv:       newDense(ps, name+"/wv", dModel, dModel, rng),
		out:      newDense(ps, name+"/dense", dModel, dModel, rng),
	}
}

// forward attends query rows over key/value rows, mask is additive (queries x keys) or nil
func (m *MultiHeadAttention) forward(tp *tensor.Tape, q, k, v *tensor.Node, mask *mat.Dense) *tensor.Node {
	qp := m.wq.forward(tp, q)
	kp := m.wk.forward(tp, k)
	vp := m.wv.forward(tp, v)
	scale := 1 / math.Sqrt(float64(m.depth))
	heads := make([]*tensor.Node, m.numHeads)
	for h := 0; h < m.numHeads; h++ {
		from, to := h*m.depth, (h+1)*m.depth
		logits := tp.Scale(tp.MatMulT(tp.SliceCols(qp, from, to), tp.SliceCols(kp, from, to)), scale)
		weights := tp.Softmax(logits, mask)
		heads[h] = tp.MatMul(weights, tp.SliceCols(vp, from, to))
	}
	return m.out.forward(tp, tp.ConcatCols(heads...))
}

// FeedForward is the point-wise two layer network
type FeedForward struct {
	hidden *Dense
	out    *Dense
}

func newFeedForward(ps *paramSet, name string, dModel, dff int, rng *rand.Rand) *FeedForward {
	return &FeedForward{
		hidden: newDense(ps, name+"/dense_1", dModel, dff, rng),
		out:    newDense(ps, name+"/dense_2", dff, dModel, rng),
	}
}

func (f *FeedForward) forward(tp *tensor.Tape, x *tensor.Node) *tensor.Node {
	return f.out.forward(tp, tp.ReLU(f.hidden.forward(tp, x)))
}

// PositionalEncoding provides sinusoidal position signals up to maxPositions.
// Rows are computed on first use and cached.
type PositionalEncoding struct {
	dModel       int
	maxPositions int

	lock  sync.Mutex
	table *mat.Dense
}

// NewPositionalEncoding creates encoding for dModel wide embeddings
func NewPositionalEncoding(maxPositions, dModel int) *PositionalEncoding {
	return &PositionalEncoding{dModel: dModel, maxPositions: maxPositions}
}

// Rows returns encoding for positions [0, n)
func (pe *PositionalEncoding) Rows(n int) (*mat.Dense, error) {
	if n > pe.maxPositions {
		return nil, errors.Errorf("Sequence length %d exceeds max positions %d", n, pe.maxPositions)
	}
	pe.lock.Lock()
	defer pe.lock.Unlock()

	have := 0
	if pe.table != nil {
		have, _ = pe.table.Dims()
	}
	if have < n {
		t := mat.NewDense(n, pe.dModel, nil)
		if have > 0 {
			t.Slice(0, have, 0, pe.dModel).(*mat.Dense).Copy(pe.table)
		}
		for pos := have; pos < n; pos++ {
			row := t.RawRowView(pos)
			for i := range row {
				angle := float64(pos) / math.Pow(10000, float64(2*(i/2))/float64(pe.dModel))
				if i%2 == 0 {
					row[i] = math.Sin(angle)
				} else {
					row[i] = math.Cos(angle)
				}
			}
		}
		pe.table = t
	}
	return pe.table.Slice(0, n, 0, pe.dModel).(*mat.Dense), nil
}

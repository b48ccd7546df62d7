package tensor

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// MaskValue is added to attention logits at masked positions
const MaskValue = -1e9

// MatMul returns a·b
func (t *Tape) MatMul(a, b *Node) *Node {
	ar, _ := a.Dims()
	_, bc := b.Dims()
	v := mat.NewDense(ar, bc, nil)
	v.Mul(a.Value, b.Value)
	return t.record(v, func(n *Node) {
		if a.requiresGrad {
			g := mat.NewDense(ar, a.Value.RawMatrix().Cols, nil)
			g.Mul(n.grad, b.Value.T())
			a.accumulate(g)
		}
		if b.requiresGrad {
			br, _ := b.Dims()
			g := mat.NewDense(br, bc, nil)
			g.Mul(a.Value.T(), n.grad)
			b.accumulate(g)
		}
	}, a, b)
}

// MatMulT returns a·bᵀ
func (t *Tape) MatMulT(a, b *Node) *Node {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	v := mat.NewDense(ar, br, nil)
	v.Mul(a.Value, b.Value.T())
	return t.record(v, func(n *Node) {
		if a.requiresGrad {
			g := mat.NewDense(ar, ac, nil)
			g.Mul(n.grad, b.Value)
			a.accumulate(g)
		}
		if b.requiresGrad {
			g := mat.NewDense(br, bc, nil)
			g.Mul(n.grad.T(), a.Value)
			b.accumulate(g)
		}
	}, a, b)
}

// Add returns a+b, shapes must match
func (t *Tape) Add(a, b *Node) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, c, nil)
	v.Add(a.Value, b.Value)
	return t.record(v, func(n *Node) {
		a.accumulate(n.grad)
		b.accumulate(n.grad)
	}, a, b)
}

// AddRow adds 1xC row vector to every row of a
func (t *Tape) AddRow(a, row *Node) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, c, nil)
	rv := row.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		dst := v.RawRowView(i)
		src := a.Value.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] + rv[j]
		}
	}
	return t.record(v, func(n *Node) {
		a.accumulate(n.grad)
		if row.requiresGrad {
			g := mat.NewDense(1, c, nil)
			gr := g.RawRowView(0)
			for i := 0; i < r; i++ {
				for j, x := range n.grad.RawRowView(i) {
					gr[j] += x
				}
			}
			row.accumulate(g)
		}
	}, a, row)
}

// Scale returns s·a
func (t *Tape) Scale(a *Node, s float64) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, c, nil)
	v.Scale(s, a.Value)
	return t.record(v, func(n *Node) {
		g := mat.NewDense(r, c, nil)
		g.Scale(s, n.grad)
		a.accumulate(g)
	}, a)
}

// ReLU returns max(0, a)
func (t *Tape) ReLU(a *Node) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, c, nil)
	v.Apply(func(_, _ int, x float64) float64 { return math.Max(0, x) }, a.Value)
	return t.record(v, func(n *Node) {
		g := mat.NewDense(r, c, nil)
		g.Apply(func(i, j int, x float64) float64 {
			if a.Value.At(i, j) > 0 {
				return x
			}
			return 0
		}, n.grad)
		a.accumulate(g)
	}, a)
}

// Dropout zeroes values with probability rate and scales the rest by 1/(1-rate).
// Nil rng or zero rate returns a unchanged.
func (t *Tape) Dropout(a *Node, rate float64, rng *rand.Rand) *Node {
	if rng == nil || rate <= 0 {
		return a
	}
	r, c := a.Dims()
	keep := 1 / (1 - rate)
	m := mat.NewDense(r, c, nil)
	m.Apply(func(_, _ int, _ float64) float64 {
		if rng.Float64() < rate {
			return 0
		}
		return keep
	}, m)
	v := mat.NewDense(r, c, nil)
	v.MulElem(a.Value, m)
	return t.record(v, func(n *Node) {
		g := mat.NewDense(r, c, nil)
		g.MulElem(n.grad, m)
		a.accumulate(g)
	}, a)
}

// Softmax applies row-wise softmax to a+mask, mask is additive and may be nil
func (t *Tape) Softmax(a *Node, mask *mat.Dense) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := a.Value.RawRowView(i)
		dst := v.RawRowView(i)
		copy(dst, src)
		if mask != nil {
			for j, m := range mask.RawRowView(i) {
				dst[j] += m
			}
		}
		softmaxInPlace(dst)
	}
	return t.record(v, func(n *Node) {
		g := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			y := v.RawRowView(i)
			dy := n.grad.RawRowView(i)
			dot := 0.0
			for j := range y {
				dot += y[j] * dy[j]
			}
			dst := g.RawRowView(i)
			for j := range y {
				dst[j] = y[j] * (dy[j] - dot)
			}
		}
		a.accumulate(g)
	}, a)
}

func softmaxInPlace(row []float64) {
	max := math.Inf(-1)
	for _, x := range row {
		if x > max {
			max = x
		}
	}
	sum := 0.0
	for j, x := range row {
		e := math.Exp(x - max)
		row[j] = e
		sum += e
	}
	for j := range row {
		row[j] /= sum
	}
}

// LayerNorm normalizes each row of x and applies 1xC gamma and beta
func (t *Tape) LayerNorm(x, gamma, beta *Node, eps float64) *Node {
	r, c := x.Dims()
	v := mat.NewDense(r, c, nil)
	xHat := mat.NewDense(r, c, nil)
	invStd := make([]float64, r)
	gv := gamma.Value.RawRowView(0)
	bv := beta.Value.RawRowView(0)
	n := float64(c)
	for i := 0; i < r; i++ {
		row := x.Value.RawRowView(i)
		mean := 0.0
		for _, a := range row {
			mean += a
		}
		mean /= n
		variance := 0.0
		for _, a := range row {
			variance += (a - mean) * (a - mean)
		}
		variance /= n
		invStd[i] = 1 / math.Sqrt(variance+eps)
		xh := xHat.RawRowView(i)
		dst := v.RawRowView(i)
		for j, a := range row {
			xh[j] = (a - mean) * invStd[i]
			dst[j] = xh[j]*gv[j] + bv[j]
		}
	}
	return t.record(v, func(nd *Node) {
		gx := mat.NewDense(r, c, nil)
		gGamma := mat.NewDense(1, c, nil)
		gBeta := mat.NewDense(1, c, nil)
		gg := gGamma.RawRowView(0)
		gb := gBeta.RawRowView(0)
		for i := 0; i < r; i++ {
			dy := nd.grad.RawRowView(i)
			xh := xHat.RawRowView(i)
			sumD, sumDX := 0.0, 0.0
			for j := range dy {
				gg[j] += dy[j] * xh[j]
				gb[j] += dy[j]
				d := dy[j] * gv[j]
				sumD += d
				sumDX += d * xh[j]
			}
			dst := gx.RawRowView(i)
			for j := range dy {
				d := dy[j] * gv[j]
				dst[j] = invStd[i] / n * (n*d - sumD - xh[j]*sumDX)
			}
		}
		x.accumulate(gx)
		gamma.accumulate(gGamma)
		beta.accumulate(gBeta)
	}, x, gamma, beta)
}

// Embedding gathers rows of table by ids
func (t *Tape) Embedding(table *Node, ids []int) *Node {
	_, c := table.Dims()
	v := mat.NewDense(len(ids), c, nil)
	for i, id := range ids {
		copy(v.RawRowView(i), table.Value.RawRowView(id))
	}
	return t.record(v, func(n *Node) {
		tr, _ := table.Dims()
		g := mat.NewDense(tr, c, nil)
		for i, id := range ids {
			dst := g.RawRowView(id)
			for j, x := range n.grad.RawRowView(i) {
				dst[j] += x
			}
		}
		table.accumulate(g)
	}, table)
}

// SliceCols returns columns [from, to) of a
func (t *Tape) SliceCols(a *Node, from, to int) *Node {
	r, c := a.Dims()
	v := mat.NewDense(r, to-from, nil)
	v.Copy(a.Value.Slice(0, r, from, to))
	return t.record(v, func(n *Node) {
		g := mat.NewDense(r, c, nil)
		g.Slice(0, r, from, to).(*mat.Dense).Copy(n.grad)
		a.accumulate(g)
	}, a)
}

// ConcatCols joins nodes with equal row count side by side
func (t *Tape) ConcatCols(nodes ...*Node) *Node {
	r, _ := nodes[0].Dims()
	total := 0
	for _, n := range nodes {
		_, c := n.Dims()
		total += c
	}
	v := mat.NewDense(r, total, nil)
	off := 0
	for _, n := range nodes {
		_, c := n.Dims()
		v.Slice(0, r, off, off+c).(*mat.Dense).Copy(n.Value)
		off += c
	}
	return t.record(v, func(res *Node) {
		off := 0
		for _, n := range nodes {
			_, c := n.Dims()
			if n.requiresGrad {
				n.accumulate(res.grad.Slice(0, r, off, off+c))
			}
			off += c
		}
	}, nodes...)
}

// Sum adds scalar nodes
func (t *Tape) Sum(nodes ...*Node) *Node {
	s := 0.0
	for _, n := range nodes {
		s += n.Scalar()
	}
	return t.record(mat.NewDense(1, 1, []float64{s}), func(res *Node) {
		for _, n := range nodes {
			n.accumulate(res.grad)
		}
	}, nodes...)
}

// SoftmaxCrossEntropy returns the weighted sum of sparse softmax cross entropy over the rows of logits.
// Rows with zero weight do not contribute.
func (t *Tape) SoftmaxCrossEntropy(logits *Node, targets []int, weights []float64) *Node {
	r, c := logits.Dims()
	probs := mat.NewDense(r, c, nil)
	loss := 0.0
	for i := 0; i < r; i++ {
		p := probs.RawRowView(i)
		copy(p, logits.Value.RawRowView(i))
		softmaxInPlace(p)
		if weights[i] != 0 {
			loss -= weights[i] * math.Log(math.Max(p[targets[i]], 1e-300))
		}
	}
	return t.record(mat.NewDense(1, 1, []float64{loss}), func(n *Node) {
		s := n.grad.At(0, 0)
		g := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			if weights[i] == 0 {
				continue
			}
			w := weights[i] * s
			dst := g.RawRowView(i)
			for j, x := range probs.RawRowView(i) {
				dst[j] = w * x
			}
			dst[targets[i]] -= w
		}
		logits.accumulate(g)
	}, logits)
}

package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func randParam(name string, r, c int, rng *rand.Rand) *Param {
	return NewParam(name, r, c, func(_, _ int) float64 { return rng.Float64()*2 - 1 })
}

// checkGrad compares tape gradients with central finite differences
func checkGrad(t *testing.T, params []*Param, f func(tp *Tape) *Node) {
	t.Helper()
	tp := NewTape()
	grads, err := tp.Backward(f(tp))
	assert.Nil(t, err)
	const h = 1e-5
	for _, p := range params {
		g, ok := grads[p]
		if !assert.True(t, ok, p.Name) {
			continue
		}
		r, c := p.Value.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				old := p.Value.At(i, j)
				p.Value.Set(i, j, old+h)
				up := f(NewTape()).Scalar()
				p.Value.Set(i, j, old-h)
				down := f(NewTape()).Scalar()
				p.Value.Set(i, j, old)
				num := (up - down) / (2 * h)
				assert.InDelta(t, num, g.At(i, j), 1e-5*math.Max(1, math.Abs(num)), "%s[%d,%d]", p.Name, i, j)
			}
		}
	}
}

func TestBackward_MatMulChain(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := randParam("a", 3, 4, rng)
	b := randParam("b", 4, 2, rng)
	bias := randParam("bias", 1, 2, rng)
	checkGrad(t, []*Param{a, b, bias}, func(tp *Tape) *Node {
		y := tp.ReLU(tp.AddRow(tp.MatMul(tp.Param(a), tp.Param(b)), tp.Param(bias)))
		return tp.SoftmaxCrossEntropy(y, []int{0, 1, 1}, []float64{1, 1, 0.5})
	})
}

func TestBackward_Attention(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	q := randParam("q", 3, 4, rng)
	k := randParam("k", 5, 4, rng)
	v := randParam("v", 5, 4, rng)
	mask := mat.NewDense(3, 5, nil)
	mask.Set(0, 4, MaskValue)
	mask.Set(1, 3, MaskValue)
	checkGrad(t, []*Param{q, k, v}, func(tp *Tape) *Node {
		var heads []*Node
		for h := 0; h < 2; h++ {
			qh := tp.SliceCols(tp.Param(q), h*2, h*2+2)
			kh := tp.SliceCols(tp.Param(k), h*2, h*2+2)
			vh := tp.SliceCols(tp.Param(v), h*2, h*2+2)
			w := tp.Softmax(tp.Scale(tp.MatMulT(qh, kh), 1/math.Sqrt(2)), mask)
			heads = append(heads, tp.MatMul(w, vh))
		}
		out := tp.ConcatCols(heads...)
		return tp.SoftmaxCrossEntropy(out, []int{3, 0, 2}, []float64{1, 1, 1})
	})
}

func TestBackward_LayerNormEmbedding(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	table := randParam("table", 6, 5, rng)
	gamma := randParam("gamma", 1, 5, rng)
	beta := randParam("beta", 1, 5, rng)
	checkGrad(t, []*Param{table, gamma, beta}, func(tp *Tape) *Node {
		e := tp.Embedding(tp.Param(table), []int{1, 3, 1, 5})
		x := tp.Add(e, tp.Scale(e, 0.5))
		y := tp.LayerNorm(x, tp.Param(gamma), tp.Param(beta), 1e-6)
		l1 := tp.SoftmaxCrossEntropy(y, []int{0, 1, 2, 4}, []float64{1, 0, 1, 1})
		l2 := tp.SoftmaxCrossEntropy(e, []int{4, 4, 4, 4}, []float64{0.1, 0.1, 0.1, 0.1})
		return tp.Sum(l1, l2)
	})
}

func TestBackward_FailsOnNonScalar(t *testing.T) {
	tp := NewTape()
	p := NewParam("p", 2, 2, nil)
	_, err := tp.Backward(tp.Param(p))
	assert.NotNil(t, err)
}

func TestBackward_ConstOnly(t *testing.T) {
	tp := NewTape()
	n := tp.Sum(tp.Const(mat.NewDense(1, 1, []float64{3})))
	g, err := tp.Backward(n)
	assert.Nil(t, err)
	assert.Empty(t, g)
}

func TestDropout_NoRng(t *testing.T) {
	tp := NewTape()
	n := tp.Const(mat.NewDense(1, 2, []float64{1, 2}))
	assert.Same(t, n, tp.Dropout(n, 0.5, nil))
}

func TestDropout_Scales(t *testing.T) {
	tp := NewTape()
	n := tp.Const(mat.NewDense(1, 1000, nil))
	for j := 0; j < 1000; j++ {
		n.Value.Set(0, j, 1)
	}
	d := tp.Dropout(n, 0.5, rand.New(rand.NewSource(1)))
	for j := 0; j < 1000; j++ {
		v := d.Value.At(0, j)
		assert.True(t, v == 0 || v == 2)
	}
}

func TestGradients_Add(t *testing.T) {
	p := NewParam("p", 1, 2, nil)
	g := Gradients{}
	g.Add(Gradients{p: mat.NewDense(1, 2, []float64{1, 2})})
	g.Add(Gradients{p: mat.NewDense(1, 2, []float64{3, 4})})
	assert.Equal(t, []float64{4, 6}, g[p].RawRowView(0))
}

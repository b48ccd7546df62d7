// Package tensor implements the reverse mode differentiation used by the trainer.
//
// A Tape records the operations of one forward pass. Parameters are only read
// while a tape is alive, so several tapes (one per replica) may run concurrently
// over the same parameter set. Gradients are returned by Backward and applied by
// the optimizer afterwards.
package tensor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Param is a named trainable matrix
type Param struct {
	Name  string
	Value *mat.Dense
}

// NewParam creates param with values produced by init
func NewParam(name string, r, c int, init func(i, j int) float64) *Param {
	d := mat.NewDense(r, c, nil)
	if init != nil {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				d.Set(i, j, init(i, j))
			}
		}
	}
	return &Param{Name: name, Value: d}
}

// Size returns number of values in the param
func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

// Node is a value recorded on the tape
type Node struct {
	Value *mat.Dense

	grad         *mat.Dense
	requiresGrad bool
	backward     func()
	param        *Param
}

// Dims returns node value dimensions
func (n *Node) Dims() (int, int) {
	return n.Value.Dims()
}

// Scalar returns the value of 1x1 node
func (n *Node) Scalar() float64 {
	return n.Value.At(0, 0)
}

func (n *Node) accumulate(g mat.Matrix) {
	if !n.requiresGrad {
		return
	}
	if n.grad == nil {
		r, c := n.Value.Dims()
		n.grad = mat.NewDense(r, c, nil)
	}
	n.grad.Add(n.grad, g)
}

// Tape records operations for a single backward pass
type Tape struct {
	nodes  []*Node
	params map[*Param]*Node
}

// NewTape creates empty tape
func NewTape() *Tape {
	return &Tape{params: make(map[*Param]*Node)}
}

// Param returns leaf node for the param, the same node is returned for repeated calls
func (t *Tape) Param(p *Param) *Node {
	if n, f := t.params[p]; f {
		return n
	}
	n := &Node{Value: p.Value, requiresGrad: true, param: p}
	t.params[p] = n
	return n
}

// Const wraps a matrix that does not need gradients
func (t *Tape) Const(m *mat.Dense) *Node {
	return &Node{Value: m}
}

func (t *Tape) record(value *mat.Dense, backward func(n *Node), parents ...*Node) *Node {
	res := &Node{Value: value}
	for _, p := range parents {
		if p.requiresGrad {
			res.requiresGrad = true
			break
		}
	}
	if res.requiresGrad {
		res.backward = func() {
			if res.grad != nil {
				backward(res)
			}
		}
		t.nodes = append(t.nodes, res)
	}
	return res
}

// Backward propagates gradients from the scalar loss node and returns gradients per param
func (t *Tape) Backward(loss *Node) (Gradients, error) {
	r, c := loss.Dims()
	if r != 1 || c != 1 {
		return nil, errors.Errorf("Loss must be scalar, got %dx%d", r, c)
	}
	res := Gradients{}
	if !loss.requiresGrad {
		return res, nil
	}
	loss.accumulate(mat.NewDense(1, 1, []float64{1}))
	for i := len(t.nodes) - 1; i >= 0; i-- {
		t.nodes[i].backward()
	}
	for p, n := range t.params {
		if n.grad != nil {
			res[p] = n.grad
		}
	}
	return res, nil
}

// Gradients keeps gradient matrix per param
type Gradients map[*Param]*mat.Dense

// Add sums other gradients into g
func (g Gradients) Add(other Gradients) {
	for p, v := range other {
		if e, f := g[p]; f {
			e.Add(e, v)
		} else {
			r, c := v.Dims()
			n := mat.NewDense(r, c, nil)
			n.Copy(v)
			g[p] = n
		}
	}
}

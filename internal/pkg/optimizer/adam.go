// Package optimizer provides Adam and the learning rate schedules
package optimizer

import (
	"math"

	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam update with bias correction
type Adam struct {
	Beta1   float64
	Beta2   float64
	Epsilon float64

	schedule   Schedule
	iterations int64
	m          map[string]*mat.Dense
	v          map[string]*mat.Dense
}

// NewAdam creates optimizer
func NewAdam(schedule Schedule, beta1, beta2, epsilon float64) *Adam {
	return &Adam{Beta1: beta1, Beta2: beta2, Epsilon: epsilon, schedule: schedule,
		m: make(map[string]*mat.Dense), v: make(map[string]*mat.Dense)}
}

// Iterations returns number of applied updates
func (a *Adam) Iterations() int64 {
	return a.iterations
}

// Apply updates params with gradients, params without gradient are left untouched.
// Returns the learning rate used.
func (a *Adam) Apply(params []*tensor.Param, grads tensor.Gradients) float64 {
	a.iterations++
	lr := a.schedule.LearningRate(a.iterations)
	bias1 := 1 - math.Pow(a.Beta1, float64(a.iterations))
	bias2 := 1 - math.Pow(a.Beta2, float64(a.iterations))
	for _, p := range params {
		g, f := grads[p]
		if !f {
			continue
		}
		m, v := a.slots(p)
		pv := p.Value.RawMatrix()
		mv, vv, gv := m.RawMatrix(), v.RawMatrix(), g.RawMatrix()
		for i := 0; i < pv.Rows; i++ {
			pr := pv.Data[i*pv.Stride : i*pv.Stride+pv.Cols]
			mr := mv.Data[i*mv.Stride : i*mv.Stride+mv.Cols]
			vr := vv.Data[i*vv.Stride : i*vv.Stride+vv.Cols]
			gr := gv.Data[i*gv.Stride : i*gv.Stride+gv.Cols]
			for j, gj := range gr {
				mr[j] = a.Beta1*mr[j] + (1-a.Beta1)*gj
				vr[j] = a.Beta2*vr[j] + (1-a.Beta2)*gj*gj
				pr[j] -= lr * (mr[j] / bias1) / (math.Sqrt(vr[j]/bias2) + a.Epsilon)
			}
		}
	}
	return lr
}

func (a *Adam) slots(p *tensor.Param) (*mat.Dense, *mat.Dense) {
	m, f := a.m[p.Name]
	if !f {
		r, c := p.Value.Dims()
		m = mat.NewDense(r, c, nil)
		a.m[p.Name] = m
		a.v[p.Name] = mat.NewDense(r, c, nil)
	}
	return m, a.v[p.Name]
}

// Slot keeps optimizer moments of one param
type Slot struct {
	Rows int
	Cols int
	M    []float64
	V    []float64
}

// State is serializable optimizer state
type State struct {
	Iterations int64
	Slots      map[string]*Slot
}

// State returns a copy of the optimizer state
func (a *Adam) State() *State {
	res := &State{Iterations: a.iterations, Slots: make(map[string]*Slot, len(a.m))}
	for k, m := range a.m {
		r, c := m.Dims()
		s := &Slot{Rows: r, Cols: c, M: make([]float64, 0, r*c), V: make([]float64, 0, r*c)}
		v := a.v[k]
		for i := 0; i < r; i++ {
			s.M = append(s.M, m.RawRowView(i)...)
			s.V = append(s.V, v.RawRowView(i)...)
		}
		res.Slots[k] = s
	}
	return res
}

// SetState restores optimizer from the state
func (a *Adam) SetState(st *State) error {
	if st == nil {
		return errors.New("No optimizer state")
	}
	m := make(map[string]*mat.Dense, len(st.Slots))
	v := make(map[string]*mat.Dense, len(st.Slots))
	for k, s := range st.Slots {
		if s.Rows*s.Cols != len(s.M) || len(s.M) != len(s.V) || len(s.M) == 0 {
			return errors.Errorf("Wrong optimizer slot %s", k)
		}
		m[k] = mat.NewDense(s.Rows, s.Cols, append([]float64(nil), s.M...))
		v[k] = mat.NewDense(s.Rows, s.Cols, append([]float64(nil), s.V...))
	}
	a.iterations = st.Iterations
	a.m, a.v = m, v
	return nil
}

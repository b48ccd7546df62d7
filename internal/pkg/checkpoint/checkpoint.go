// Package checkpoint saves and restores trainable parameters with the optimizer state
package checkpoint

import (
	"encoding/gob"
	"os"

	"github.com/airenas/sumtrainer/internal/pkg/optimizer"
	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/pkg/errors"
)

// Tensor is a serialized param
type Tensor struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// Checkpoint keeps the training state
type Checkpoint struct {
	Epoch     int
	Params    []*Tensor
	Optimizer *optimizer.State
}

// New makes checkpoint from params and optimizer, values are copied
func New(epoch int, params []*tensor.Param, opt *optimizer.Adam) *Checkpoint {
	res := &Checkpoint{Epoch: epoch, Params: make([]*Tensor, 0, len(params))}
	for _, p := range params {
		r, c := p.Value.Dims()
		t := &Tensor{Name: p.Name, Rows: r, Cols: c, Data: make([]float64, 0, r*c)}
		for i := 0; i < r; i++ {
			t.Data = append(t.Data, p.Value.RawRowView(i)...)
		}
		res.Params = append(res.Params, t)
	}
	if opt != nil {
		res.Optimizer = opt.State()
	}
	return res
}

// Apply copies saved values into params and restores optimizer state.
// Every param must be present in the checkpoint with the same shape.
func (c *Checkpoint) Apply(params []*tensor.Param, opt *optimizer.Adam) error {
	saved := make(map[string]*Tensor, len(c.Params))
	for _, t := range c.Params {
		saved[t.Name] = t
	}
	for _, p := range params {
		t, f := saved[p.Name]
		if !f {
			return errors.Errorf("No param '%s' in checkpoint", p.Name)
		}
		r, cl := p.Value.Dims()
		if t.Rows != r || t.Cols != cl || len(t.Data) != r*cl {
			return errors.Errorf("Wrong shape of '%s': %dx%d, expected %dx%d", p.Name, t.Rows, t.Cols, r, cl)
		}
	}
	for _, p := range params {
		t := saved[p.Name]
		for i := 0; i < t.Rows; i++ {
			copy(p.Value.RawRowView(i), t.Data[i*t.Cols:(i+1)*t.Cols])
		}
	}
	if opt != nil && c.Optimizer != nil {
		return opt.SetState(c.Optimizer)
	}
	return nil
}

// Write saves checkpoint into file
func Write(fileName string, c *Checkpoint) error {
	tmp := fileName + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "Can't create %s", tmp)
	}
	err = gob.NewEncoder(f).Encode(c)
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "Can't write %s", fileName)
	}
	return errors.Wrapf(os.Rename(tmp, fileName), "Can't rename %s", tmp)
}

// Read loads checkpoint from file
func Read(fileName string) (*Checkpoint, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open %s", fileName)
	}
	defer f.Close()
	var res Checkpoint
	if err := gob.NewDecoder(f).Decode(&res); err != nil {
		return nil, errors.Wrapf(err, "Can't decode %s", fileName)
	}
	return &res, nil
}

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/airenas/sumtrainer/internal/pkg/optimizer"
	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func testParams(v float64) []*tensor.Param {
	return []*tensor.Param{
		tensor.NewParam("a", 2, 3, func(i, j int) float64 { return v + float64(i*3+j) }),
		tensor.NewParam("b", 1, 2, func(i, j int) float64 { return -v }),
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	ps := testParams(1)
	opt := optimizer.NewAdam(optimizer.ConstantSchedule(0.1), 0.9, 0.98, 1e-9)
	opt.Apply(ps, tensor.Gradients{ps[0]: mat.NewDense(2, 3, []float64{1, 1, 1, 1, 1, 1})})

	fn := filepath.Join(t.TempDir(), "c.gob")
	assert.Nil(t, Write(fn, New(7, ps, opt)))
	c, err := Read(fn)
	assert.Nil(t, err)
	assert.Equal(t, 7, c.Epoch)

	rs := testParams(100)
	ropt := optimizer.NewAdam(optimizer.ConstantSchedule(0.1), 0.9, 0.98, 1e-9)
	assert.Nil(t, c.Apply(rs, ropt))
	for i := range ps {
		assert.True(t, mat.Equal(ps[i].Value, rs[i].Value))
	}
	assert.Equal(t, opt.Iterations(), ropt.Iterations())
}

func TestApply_Fails(t *testing.T) {
	c := New(1, testParams(1), nil)
	assert.NotNil(t, c.Apply([]*tensor.Param{tensor.NewParam("c", 1, 1, nil)}, nil))
	assert.NotNil(t, c.Apply([]*tensor.Param{tensor.NewParam("a", 3, 2, nil)}, nil))
}

func TestApply_KeepsValuesOnFailure(t *testing.T) {
	c := New(1, testParams(1), nil)
	ps := []*tensor.Param{tensor.NewParam("a", 2, 3, nil), tensor.NewParam("c", 1, 1, nil)}
	assert.NotNil(t, c.Apply(ps, nil))
	assert.Equal(t, 0.0, ps[0].Value.At(1, 1))
}

func TestRead_Fails(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none"))
	assert.NotNil(t, err)
	fn := filepath.Join(t.TempDir(), "bad")
	assert.Nil(t, os.WriteFile(fn, []byte("olia"), 0644))
	_, err = Read(fn)
	assert.NotNil(t, err)
}

func TestManager_KeepsMax(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 2)
	assert.Nil(t, err)
	assert.Equal(t, "", m.Latest())
	for i := 1; i <= 3; i++ {
		p, err := m.Save(New(i, testParams(float64(i)), nil))
		assert.Nil(t, err)
		assert.Equal(t, m.Latest(), p)
	}
	assert.Equal(t, []string{filepath.Join(dir, "ckpt-2.gob"), filepath.Join(dir, "ckpt-3.gob")}, m.Checkpoints())
	_, err = os.Stat(filepath.Join(dir, "ckpt-1.gob"))
	assert.True(t, os.IsNotExist(err))

	m2, err := NewManager(dir, 2)
	assert.Nil(t, err)
	assert.Equal(t, m.Latest(), m2.Latest())
	c, err := m2.Restore()
	assert.Nil(t, err)
	assert.Equal(t, 3, c.Epoch)
	p, err := m2.Save(New(4, testParams(4), nil))
	assert.Nil(t, err)
	assert.Equal(t, filepath.Join(dir, "ckpt-4.gob"), p)
}

func TestManager_RestoreEmpty(t *testing.T) {
	m, err := NewManager(t.TempDir(), 5)
	assert.Nil(t, err)
	_, err = m.Restore()
	assert.NotNil(t, err)
}

func TestNewManager_Fails(t *testing.T) {
	_, err := NewManager("", 5)
	assert.NotNil(t, err)
	dir := t.TempDir()
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "checkpoint"), []byte("all: [olia"), 0644))
	_, err = NewManager(dir, 5)
	assert.NotNil(t, err)
}

type testConfig struct {
	Layers int `yaml:"layers"`
}

func TestModelConfig(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, WriteModelConfig(dir, &testConfig{Layers: 4}))
	var c testConfig
	assert.Nil(t, ReadModelConfig(dir, &c))
	assert.Equal(t, 4, c.Layers)
}

func TestLatestEpoch(t *testing.T) {
	root := t.TempDir()
	n, err := LatestEpoch(filepath.Join(root, "none"))
	assert.Nil(t, err)
	assert.Equal(t, 0, n)

	for _, e := range []int{2, 10} {
		m, err := NewManager(EpochDir(root, e), 1)
		assert.Nil(t, err)
		_, err = m.Save(New(e, testParams(1), nil))
		assert.Nil(t, err)
	}
	assert.Nil(t, os.MkdirAll(EpochDir(root, 11), os.ModePerm))
	assert.Nil(t, os.MkdirAll(filepath.Join(root, "other"), os.ModePerm))
	n, err = LatestEpoch(root)
	assert.Nil(t, err)
	assert.Equal(t, 10, n)
}

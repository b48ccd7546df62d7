package model

import (
	"math/rand"
	"testing"

	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{NumLayers: 1, DModel: 8, NumHeads: 2, DFF: 16, InputVocab: 10, TargetVocab: 12}
}

func TestNew(t *testing.T) {
	m, err := New(testConfig(), rand.New(rand.NewSource(1)))
	assert.Nil(t, err)
	assert.Equal(t, 10, m.Config().PEInput)
	assert.Equal(t, 12, m.Config().PETarget)
	assert.True(t, m.NumParameters() > 0)
	names := map[string]bool{}
	for _, p := range m.Parameters() {
		assert.False(t, names[p.Name], p.Name)
		names[p.Name] = true
	}
	assert.True(t, names["final_layer/kernel"])
	assert.True(t, names["decoder/layer_0/mha_2/wq/kernel"])
}

func TestNew_FailsOnHeads(t *testing.T) {
	c := testConfig()
	c.NumHeads = 3
	_, err := New(c, rand.New(rand.NewSource(1)))
	assert.NotNil(t, err)
}

func TestNew_FailsOnVocab(t *testing.T) {
	c := testConfig()
	c.InputVocab = 1
	_, err := New(c, rand.New(rand.NewSource(1)))
	assert.NotNil(t, err)
}

func TestForward_Shape(t *testing.T) {
	m, err := New(testConfig(), rand.New(rand.NewSource(1)))
	assert.Nil(t, err)
	logits, err := m.Forward(tensor.NewTape(), []int{1, 2, 3, 0, 0}, []int{1, 4, 5, 0}, nil, nil)
	assert.Nil(t, err)
	r, c := logits.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 12, c)
}

func TestForward_FailsOnUnknownID(t *testing.T) {
	m, err := New(testConfig(), rand.New(rand.NewSource(1)))
	assert.Nil(t, err)
	_, err = m.Forward(tensor.NewTape(), []int{1, 20}, []int{1}, nil, nil)
	assert.NotNil(t, err)
}

func TestForward_FailsOnLongSequence(t *testing.T) {
	c := testConfig()
	c.PEInput = 3
	m, err := New(c, rand.New(rand.NewSource(1)))
	assert.Nil(t, err)
	_, err = m.Forward(tensor.NewTape(), []int{1, 2, 3, 4}, []int{1}, nil, nil)
	assert.NotNil(t, err)
}

func TestForward_PaddingDoesNotChangeRealPositions(t *testing.T) {
	m, err := New(testConfig(), rand.New(rand.NewSource(1)))
	assert.Nil(t, err)
	a, err := m.Forward(tensor.NewTape(), []int{1, 2, 3, 0}, []int{1, 4, 0}, nil, nil)
	assert.Nil(t, err)
	b, err := m.Forward(tensor.NewTape(), []int{1, 2, 3, 0, 0, 0}, []int{1, 4, 0, 0}, nil, nil)
	assert.Nil(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < 12; j++ {
			assert.InDelta(t, a.Value.At(i, j), b.Value.At(i, j), 1e-9)
		}
	}
}

func TestMasks(t *testing.T) {
	m := CreateMasks([]int{5, 0}, []int{1, 2, 0})
	assert.Equal(t, 0.0, m.Encoder.At(1, 0))
	assert.Equal(t, tensor.MaskValue, m.Encoder.At(0, 1))
	assert.Equal(t, tensor.MaskValue, m.Combined.At(0, 1))
	assert.Equal(t, 0.0, m.Combined.At(1, 0))
	assert.Equal(t, tensor.MaskValue, m.Combined.At(2, 2))
	r, c := m.Decoder.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, tensor.MaskValue, m.Decoder.At(2, 1))
}

func TestPositionalEncoding(t *testing.T) {
	pe := NewPositionalEncoding(50, 4)
	a, err := pe.Rows(3)
	assert.Nil(t, err)
	assert.Equal(t, 0.0, a.At(0, 0))
	assert.Equal(t, 1.0, a.At(0, 1))
	b, err := pe.Rows(10)
	assert.Nil(t, err)
	assert.InDelta(t, a.At(2, 2), b.At(2, 2), 1e-12)
	_, err = pe.Rows(51)
	assert.NotNil(t, err)
}

func TestMaskedLoss(t *testing.T) {
	m, err := New(testConfig(), rand.New(rand.NewSource(1)))
	assert.Nil(t, err)
	tp := tensor.NewTape()
	logits, err := m.Forward(tp, []int{1, 2}, []int{1, 4, 5}, nil, nil)
	assert.Nil(t, err)
	loss, n := MaskedLoss(tp, logits, []int{4, 5, 0})
	assert.Equal(t, 2, n)
	assert.True(t, loss.Scalar() > 0)
	assert.Len(t, Predictions(logits), 3)
}

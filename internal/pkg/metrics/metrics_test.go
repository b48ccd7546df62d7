package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	m := &Mean{}
	assert.Equal(t, 0.0, m.Result())
	m.Update(1)
	m.Update(3)
	assert.Equal(t, 2.0, m.Result())
	m.UpdateWeighted(8, 2)
	assert.Equal(t, 5.0, m.Result())
	m.Reset()
	assert.Equal(t, 0.0, m.Result())
}

func TestAccuracy(t *testing.T) {
	a := &SparseCategoricalAccuracy{}
	assert.Equal(t, 0.0, a.Result())
	a.Update([]int{1, 2, 3, 0}, []int{1, 2, 0, 0})
	assert.Equal(t, 0.75, a.Result())
	a.Update([]int{1, 2}, []int{1})
	assert.Equal(t, 0.8, a.Result())
	a.Reset()
	assert.Equal(t, 0.0, a.Result())
}

func TestAccuracy_Concurrent(t *testing.T) {
	a := &SparseCategoricalAccuracy{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Update([]int{1, 2}, []int{1, 3})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0.5, a.Result())
}

func TestTraining(t *testing.T) {
	tr, err := NewTraining()
	assert.Nil(t, err)
	tr.ObserveEpoch(3, 1.5, 0.25)
	tr.ObserveStep(0.001, time.Second)
	assert.Equal(t, 3.0, testutil.ToFloat64(tr.Epoch))
	assert.Equal(t, 1.5, testutil.ToFloat64(tr.Loss))
	assert.Equal(t, 0.25, testutil.ToFloat64(tr.Accuracy))
	assert.Equal(t, 0.001, testutil.ToFloat64(tr.LearningRate))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.Steps))

	_, err = NewTraining()
	assert.Nil(t, err)
}

func TestRegister_Replaces(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: Namespace, Name: "test_register", Help: "test"})
	assert.Nil(t, Register(g))
	assert.Nil(t, Register(g))
	assert.True(t, prometheus.Unregister(g))
}

func TestRegister_Fails(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "wrong name", Help: "test"})
	assert.NotNil(t, Register(g))
}

package metrics

import (
	"sync"
)

// Mean accumulates weighted mean of values
type Mean struct {
	lock  sync.Mutex
	total float64
	count float64
}

// Update adds value
func (m *Mean) Update(v float64) {
	m.UpdateWeighted(v, 1)
}

// UpdateWeighted adds value with weight w
func (m *Mean) UpdateWeighted(v, w float64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.total += v * w
	m.count += w
}

// Result returns current mean, 0 if nothing added
func (m *Mean) Result() float64 {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.count == 0 {
		return 0
	}
	return m.total / m.count
}

// Reset clears the state
func (m *Mean) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.total, m.count = 0, 0
}

// SparseCategoricalAccuracy counts predicted ids equal to the real ones
type SparseCategoricalAccuracy struct {
	lock    sync.Mutex
	correct int64
	total   int64
}

// Update compares real ids with predictions, extra items of the longer slice are ignored
func (a *SparseCategoricalAccuracy) Update(real, predicted []int) {
	c := 0
	n := len(real)
	if len(predicted) < n {
		n = len(predicted)
	}
	for i := 0; i < n; i++ {
		if real[i] == predicted[i] {
			c++
		}
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.correct += int64(c)
	a.total += int64(n)
}

// Result returns accuracy in [0, 1]
func (a *SparseCategoricalAccuracy) Result() float64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

// Reset clears the state
func (a *SparseCategoricalAccuracy) Reset() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.correct, a.total = 0, 0
}

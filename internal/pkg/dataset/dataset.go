// Package dataset batches paired input/target sequences for training
package dataset

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Batch keeps rows of one training step
type Batch struct {
	Inputs  [][]int
	Targets [][]int
}

// Size returns number of rows in the batch
func (b *Batch) Size() int {
	return len(b.Inputs)
}

// Dataset is an in memory set of examples, shuffled again on every epoch
type Dataset struct {
	inputs    [][]int
	targets   [][]int
	buffer    int
	rng       *rand.Rand
	batchSize int
}

// FromSlices creates dataset of paired rows
func FromSlices(inputs, targets [][]int) (*Dataset, error) {
	if len(inputs) != len(targets) {
		return nil, errors.Errorf("Inputs and targets differ in size: %d vs %d", len(inputs), len(targets))
	}
	if len(inputs) == 0 {
		return nil, errors.New("No examples")
	}
	return &Dataset{inputs: inputs, targets: targets, batchSize: 1}, nil
}

// Shuffle enables buffered shuffling, buffer >= Len gives a uniform permutation
func (d *Dataset) Shuffle(buffer int, rng *rand.Rand) *Dataset {
	d.buffer = buffer
	d.rng = rng
	return d
}

// Batch sets batch size, the last batch may be smaller
func (d *Dataset) Batch(size int) *Dataset {
	if size < 1 {
		size = 1
	}
	d.batchSize = size
	return d
}

// Len returns number of examples
func (d *Dataset) Len() int {
	return len(d.inputs)
}

// NumBatches returns number of batches in an epoch
func (d *Dataset) NumBatches() int {
	return (len(d.inputs) + d.batchSize - 1) / d.batchSize
}

// Epoch returns batches of one pass over the data
func (d *Dataset) Epoch() []*Batch {
	order := d.order()
	res := make([]*Batch, 0, d.NumBatches())
	for from := 0; from < len(order); from += d.batchSize {
		to := from + d.batchSize
		if to > len(order) {
			to = len(order)
		}
		b := &Batch{}
		for _, i := range order[from:to] {
			b.Inputs = append(b.Inputs, d.inputs[i])
			b.Targets = append(b.Targets, d.targets[i])
		}
		res = append(res, b)
	}
	return res
}

// order emits indexes the way a streaming shuffle buffer does
func (d *Dataset) order() []int {
	n := len(d.inputs)
	res := make([]int, 0, n)
	if d.rng == nil || d.buffer <= 1 {
		for i := 0; i < n; i++ {
			res = append(res, i)
		}
		return res
	}
	buf := make([]int, 0, d.buffer)
	next := 0
	for ; next < n && len(buf) < d.buffer; next++ {
		buf = append(buf, next)
	}
	for len(buf) > 0 {
		k := d.rng.Intn(len(buf))
		res = append(res, buf[k])
		if next < n {
			buf[k] = next
			next++
		} else {
			buf[k] = buf[len(buf)-1]
			buf = buf[:len(buf)-1]
		}
	}
	return res
}

// Split shards batch rows across n replicas as evenly as possible
func Split(b *Batch, n int) []*Batch {
	if n < 1 {
		n = 1
	}
	res := make([]*Batch, n)
	size := b.Size()
	from := 0
	for r := 0; r < n; r++ {
		cnt := size / n
		if r < size%n {
			cnt++
		}
		res[r] = &Batch{Inputs: b.Inputs[from : from+cnt], Targets: b.Targets[from : from+cnt]}
		from += cnt
	}
	return res
}

// Package distribute runs a train step on several replicas sharing the same parameters
package distribute

import (
	"context"
	"runtime"

	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result is the output of one replica step
type Result struct {
	Loss  float64
	Grads tensor.Gradients
}

// ReplicaFunc executes the step on one replica
type ReplicaFunc func(ctx context.Context, replica int) (*Result, error)

// MirroredStrategy executes replicas synchronously, one goroutine per replica
type MirroredStrategy struct {
	replicas int
}

// NewMirroredStrategy creates strategy, n <= 0 uses one replica per CPU
func NewMirroredStrategy(n int) *MirroredStrategy {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &MirroredStrategy{replicas: n}
}

// NumReplicasInSync returns number of replicas
func (s *MirroredStrategy) NumReplicasInSync() int {
	return s.replicas
}

// Run executes fn on every replica and waits for all of them
func (s *MirroredStrategy) Run(ctx context.Context, fn ReplicaFunc) ([]*Result, error) {
	res := make([]*Result, s.replicas)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.replicas; i++ {
		i := i
		g.Go(func() error {
			r, err := fn(gctx, i)
			if err != nil {
				return errors.Wrapf(err, "Replica %d failed", i)
			}
			res[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// ReduceSum sums losses and gradients of all replicas
func ReduceSum(results []*Result) (float64, tensor.Gradients) {
	loss := 0.0
	grads := tensor.Gradients{}
	for _, r := range results {
		if r == nil {
			continue
		}
		loss += r.Loss
		grads.Add(r.Grads)
	}
	return loss, grads
}

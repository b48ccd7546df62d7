package train

import (
	"context"
	"math/rand"
	"time"

	"github.com/airenas/sumtrainer/internal/pkg/dataset"
	"github.com/airenas/sumtrainer/internal/pkg/distribute"
	"github.com/airenas/sumtrainer/internal/pkg/model"
	"github.com/airenas/sumtrainer/internal/pkg/tensor"
	"github.com/pkg/errors"
)

// replicaStep computes loss and gradients of one shard.
// The shard loss is divided by tokens, the count of real target tokens in the whole batch,
// so summed replica losses give the masked mean of the batch.
func (t *Trainer) replicaStep(shard *dataset.Batch, tokens int, rng *rand.Rand) (*distribute.Result, error) {
	tp := tensor.NewTape()
	losses := make([]*tensor.Node, 0, shard.Size())
	count := 0
	for i, inp := range shard.Inputs {
		tar := shard.Targets[i]
		if len(tar) < 2 {
			return nil, errors.Errorf("Target too short: %d", len(tar))
		}
		tarInp, tarReal := tar[:len(tar)-1], tar[1:]
		logits, err := t.Model.Forward(tp, inp, tarInp, model.CreateMasks(inp, tarInp), rng)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't run model on example %d", i)
		}
		l, n := model.MaskedLoss(tp, logits, tarReal)
		losses = append(losses, l)
		count += n
		t.Accuracy.Update(tarReal, model.Predictions(logits))
	}
	if count == 0 || tokens == 0 {
		return &distribute.Result{Grads: tensor.Gradients{}}, nil
	}
	loss := tp.Scale(tp.Sum(losses...), 1/float64(tokens))
	grads, err := tp.Backward(loss)
	if err != nil {
		return nil, errors.Wrap(err, "Can't calculate gradients")
	}
	return &distribute.Result{Loss: loss.Scalar(), Grads: grads}, nil
}

// TrainStep runs the batch on all replicas and applies one optimizer update.
// Returns the summed replica loss.
func (t *Trainer) TrainStep(ctx context.Context, batch *dataset.Batch) (float64, error) {
	start := time.Now()
	tokens := realTokens(batch)
	shards := dataset.Split(batch, t.Strategy.NumReplicasInSync())
	results, err := t.Strategy.Run(ctx, func(ctx context.Context, r int) (*distribute.Result, error) {
		return t.replicaStep(shards[r], tokens, t.replicaRng(r))
	})
	if err != nil {
		return 0, err
	}
	loss, grads := distribute.ReduceSum(results)
	lr := t.Optimizer.Apply(t.Model.Parameters(), grads)
	if t.StepObserver != nil {
		t.StepObserver.ObserveStep(lr, time.Since(start))
	}
	return loss, nil
}

// realTokens counts not padded ids of tar[1:] over the batch
func realTokens(b *dataset.Batch) int {
	res := 0
	for _, tar := range b.Targets {
		for i := 1; i < len(tar); i++ {
			if tar[i] != 0 {
				res++
			}
		}
	}
	return res
}

func (t *Trainer) replicaRng(r int) *rand.Rand {
	if r < len(t.rngs) {
		return t.rngs[r]
	}
	return nil
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace for the trainer metrics
const Namespace = "sum_trainer"

// Training keeps prometheus collectors of the training loop
type Training struct {
	Loss         prometheus.Gauge
	Accuracy     prometheus.Gauge
	LearningRate prometheus.Gauge
	Epoch        prometheus.Gauge
	Steps        prometheus.Counter
	StepDuration prometheus.Histogram
}

// NewTraining creates and registers training metrics
func NewTraining() (*Training, error) {
	res := &Training{}
	res.Loss = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "loss",
		Help:      "Mean loss of the last finished epoch",
	})
	res.Accuracy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "accuracy",
		Help:      "Accuracy of the last finished epoch",
	})
	res.LearningRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "learning_rate",
		Help:      "Learning rate of the last step",
	})
	res.Epoch = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "epoch",
		Help:      "Last finished epoch",
	})
	res.Steps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "steps_total",
		Help:      "Optimizer steps done",
	})
	res.StepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "step_duration_seconds",
		Help:      "Train step duration",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 15),
	})
	if err := Register(res.Loss, res.Accuracy, res.LearningRate, res.Epoch, res.Steps, res.StepDuration); err != nil {
		return nil, err
	}
	return res, nil
}

// ObserveStep records one optimizer step
func (t *Training) ObserveStep(lr float64, d time.Duration) {
	t.LearningRate.Set(lr)
	t.Steps.Inc()
	t.StepDuration.Observe(d.Seconds())
}

// ObserveEpoch records epoch results
func (t *Training) ObserveEpoch(epoch int, loss, accuracy float64) {
	t.Epoch.Set(float64(epoch))
	t.Loss.Set(loss)
	t.Accuracy.Set(accuracy)
}

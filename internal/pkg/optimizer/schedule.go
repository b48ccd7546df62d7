package optimizer

import "math"

// Schedule provides learning rate for the optimizer step
type Schedule interface {
	LearningRate(step int64) float64
}

// CustomSchedule is the warmup then inverse square root decay schedule:
// lr = d_model^-0.5 * min(step^-0.5, step * warmup^-1.5)
type CustomSchedule struct {
	DModel      float64
	WarmupSteps float64
}

// NewCustomSchedule creates schedule, warmup <= 0 takes 4000 steps
func NewCustomSchedule(dModel int, warmupSteps int) *CustomSchedule {
	if warmupSteps <= 0 {
		warmupSteps = 4000
	}
	return &CustomSchedule{DModel: float64(dModel), WarmupSteps: float64(warmupSteps)}
}

// LearningRate returns the rate for the 1-based step
func (s *CustomSchedule) LearningRate(step int64) float64 {
	if step < 1 {
		step = 1
	}
	st := float64(step)
	arg1 := 1 / math.Sqrt(st)
	arg2 := st * math.Pow(s.WarmupSteps, -1.5)
	return math.Min(arg1, arg2) / math.Sqrt(s.DModel)
}

// ConstantSchedule returns the same rate for every step
type ConstantSchedule float64

// LearningRate returns the constant
func (c ConstantSchedule) LearningRate(int64) float64 {
	return float64(c)
}

// Package evaluate scores regression predictions against held-out targets.
package evaluate

import (
	"fmt"
	"math"
)

// Metric names carried by a Bundle.
const (
	MAE  = "MAE"
	MSE  = "MSE"
	R2   = "R2"
	RMSE = "RMSE"
	MAPE = "MAPE"
)

// Names lists the metrics in report order.
var Names = []string{MAE, MSE, R2, RMSE, MAPE}

func checkLengths(actual, predicted []float64) error {
	if len(actual) == 0 {
		return fmt.Errorf("no values to score")
	}
	if len(actual) != len(predicted) {
		return fmt.Errorf("got %d targets and %d predictions", len(actual), len(predicted))
	}
	return nil
}

// MeanAbsoluteError is mean(|a-p|).
func MeanAbsoluteError(actual, predicted []float64) float64 {
	s := 0.0
	for i := range actual {
		s += math.Abs(actual[i] - predicted[i])
	}
	return s / float64(len(actual))
}

// MeanSquaredError is mean((a-p)^2).
func MeanSquaredError(actual, predicted []float64) float64 {
	s := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		s += d * d
	}
	return s / float64(len(actual))
}

// RSquared is 1 - SSres/SStot. A constant target scores 0.
func RSquared(actual, predicted []float64) float64 {
	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	ssTot, ssRes := 0.0, 0.0
	for i := range actual {
		d := actual[i] - mean
		ssTot += d * d
		r := actual[i] - predicted[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// MeanAbsolutePercentageError is mean(|a-p|/|a|) as a fraction. Any zero
// actual value makes the result +Inf.
func MeanAbsolutePercentageError(actual, predicted []float64) float64 {
	s := 0.0
	for i := range actual {
		if actual[i] == 0 {
			return math.Inf(1)
		}
		s += math.Abs(actual[i]-predicted[i]) / math.Abs(actual[i])
	}
	return s / float64(len(actual))
}

// Score computes the full metric bundle.
func Score(actual, predicted []float64) (*Bundle, error) {
	if err := checkLengths(actual, predicted); err != nil {
		return nil, err
	}
	mse := MeanSquaredError(actual, predicted)
	return NewBundle(map[string]float64{
		MAE:  MeanAbsoluteError(actual, predicted),
		MSE:  mse,
		R2:   RSquared(actual, predicted),
		RMSE: math.Sqrt(mse),
		MAPE: MeanAbsolutePercentageError(actual, predicted),
	}), nil
}

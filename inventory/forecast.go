/*
forecast.go - Demand forecasting

PURPOSE:
  Demand prediction is a pluggable external call: a Forecaster takes the
  usage series and returns the predicted next-period usage. When the
  external forecaster fails or times out, the engine falls back to
  LinearTrend, an in-process least-squares fit, instead of surfacing
  the error.
*/
package inventory

import (
	"context"
	"fmt"

	"github.com/warp/hospital-engine/core"
)

// Forecaster predicts next-period usage from a historical series. The
// context bounds the call; implementations must respect cancellation.
type Forecaster func(ctx context.Context, history []int) (int, error)

// minHistoryPoints is the shortest series a forecast accepts.
const minHistoryPoints = 2

// LinearTrend is the in-process fallback forecaster: an ordinary
// least-squares line over the series, evaluated one step past the end.
// Predictions are rounded and clamped at zero.
func LinearTrend(_ context.Context, history []int) (int, error) {
	n := len(history)
	if n < minHistoryPoints {
		return 0, fmt.Errorf("need at least %d usage points, got %d: %w", minHistoryPoints, n, core.ErrInvalidInput)
	}

	// x = 0..n-1, y = history. Slope and intercept in closed form.
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += float64(y)
		sumXY += x * float64(y)
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return history[n-1], nil
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	predicted := slope*fn + intercept
	rounded := int(predicted + 0.5)
	if predicted < 0 {
		rounded = 0
	}
	return rounded, nil
}

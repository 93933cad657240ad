// Package analytics implements the fixed set of windowed edge operations:
// anomaly detection, trend detection and aggregation. All functions are
// pure over a history window plus the newest value.
package analytics

import (
	"math"

	"cropwatch-engine/internal/models"
)

// trendSamples is how many of the most recent window entries trend
// detection considers.
const trendSamples = 5

// DetectAnomaly flags value as anomalous when its absolute deviation from
// the window mean exceeds two population standard deviations. An empty
// window never flags, so cold starts produce no false positives.
func DetectAnomaly(window []float64, value float64) bool {
	if len(window) == 0 {
		return false
	}

	mean := mean(window)
	stdDev := populationStdDev(window, mean)

	return math.Abs(value-mean) > 2*stdDev
}

// DetectTrend classifies the direction of the last five window entries by
// the mean of consecutive differences. Fewer than five entries yields no
// trend.
func DetectTrend(window []float64) models.Trend {
	if len(window) < trendSamples {
		return models.Trend{Direction: models.TrendNone}
	}

	recent := window[len(window)-trendSamples:]

	var sum float64
	for i := 1; i < len(recent); i++ {
		sum += recent[i] - recent[i-1]
	}
	avgDiff := sum / float64(len(recent)-1)

	direction := models.TrendDecreasing
	if avgDiff > 0 {
		direction = models.TrendIncreasing
	}

	return models.Trend{
		Direction: direction,
		Rate:      math.Abs(avgDiff),
	}
}

// Aggregate computes min, max, mean and count over the window plus the
// newest value.
func Aggregate(window []float64, value float64) models.Aggregate {
	min, max, sum := value, value, value
	for _, v := range window {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	count := len(window) + 1
	return models.Aggregate{
		Min:   min,
		Max:   max,
		Avg:   sum / float64(count),
		Count: count,
	}
}

// Analyze runs the full operation set for one sensor value.
func Analyze(window []float64, value float64) models.SensorAnalysis {
	return models.SensorAnalysis{
		Anomaly:   DetectAnomaly(window, value),
		Trend:     DetectTrend(window),
		Aggregate: Aggregate(window, value),
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStdDev(values []float64, mean float64) float64 {
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

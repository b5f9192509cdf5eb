package validator

import "math"

const (
	zScoreSignificant = 2.0
	zScoreCritical    = 3.0

	trendWindow = 5
)

// anomalyScore grades a new latency sample against a historical window. The
// z-score maps to [0,1] as max(0, 1-z/6): a six-sigma outlier bottoms out
// at zero.
func anomalyScore(sample float64, window []float64) (score, z float64) {
	if len(window) < 2 {
		return 1, 0
	}
	mean, stddev := meanStddev(window)
	if stddev == 0 {
		if sample == mean {
			return 1, 0
		}
		return 0, zScoreCritical * 2
	}
	z = math.Abs(sample-mean) / stddev
	score = 1 - z/6
	if score < 0 {
		score = 0
	}
	return score, z
}

// varianceScore punishes noisy windows: the coefficient of variation is
// subtracted from 1 and floored at zero.
func varianceScore(window []float64) float64 {
	if len(window) < 2 {
		return 1
	}
	mean, stddev := meanStddev(window)
	if mean == 0 {
		return 0
	}
	score := 1 - stddev/math.Abs(mean)
	if score < 0 {
		return 0
	}
	return score
}

// trendScore measures deviation of the sample from a short moving average of
// the most recent window entries.
func trendScore(sample float64, window []float64) float64 {
	if len(window) < 2 {
		return 1
	}
	start := len(window) - trendWindow
	if start < 0 {
		start = 0
	}
	recent := window[start:]
	var sum float64
	for _, v := range recent {
		sum += v
	}
	ma := sum / float64(len(recent))
	if ma == 0 {
		return 0
	}
	deviation := math.Abs(sample-ma) / math.Abs(ma)
	score := 1 - deviation
	if score < 0 {
		return 0
	}
	return score
}

// TemporalConsistency combines anomaly, variance and trend scores with
// 0.4/0.3/0.3 weights into a single [0,1] consistency measure.
func TemporalConsistency(sample float64, window []float64) float64 {
	anomaly, _ := anomalyScore(sample, window)
	return 0.4*anomaly + 0.3*varianceScore(window) + 0.3*trendScore(sample, window)
}

func meanStddev(values []float64) (mean, stddev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

package analyzer

import "math"

// Sub-score weights for pattern strength.
const (
	weightGasConsistency   = 0.3
	weightTimingRegularity = 0.4
	weightRepetition       = 0.3

	// Consistency thresholds as fractions of the series mean: gas prices are
	// judged tighter than timing.
	gasMeanFraction    = 0.25
	timingMeanFraction = 0.5
)

// patternStrength is the weighted combination of gas-price consistency,
// timing regularity and interaction repetition.
func patternStrength(gasPrices, intervals []float64, interactions []string) float64 {
	gas := consistencyScore(gasPrices, gasMeanFraction)
	timing := consistencyScore(intervals, timingMeanFraction)
	repetition := interactionRepetition(interactions)
	return weightGasConsistency*gas + weightTimingRegularity*timing + weightRepetition*repetition
}

// timeConsistency applies the same consistency shape to inter-transaction
// intervals alone.
func timeConsistency(intervals []float64) float64 {
	return consistencyScore(intervals, timingMeanFraction)
}

// consistencyScore is max(0, 1 - stddev/threshold) where the threshold is a
// fraction of the series mean. Short series score zero: no evidence is not
// consistency.
func consistencyScore(series []float64, meanFraction float64) float64 {
	if len(series) < 2 {
		return 0
	}
	mean, stddev := meanStddev(series)
	threshold := meanFraction * math.Abs(mean)
	if threshold == 0 {
		if stddev == 0 {
			return 1
		}
		return 0
	}
	score := 1 - stddev/threshold
	if score < 0 {
		return 0
	}
	return score
}

// interactionRepetition is 1 - normalizedEntropy over the distribution of
// (to-address, selector) pairs: a bot that always hits the same contract and
// function scores 1.
func interactionRepetition(interactions []string) float64 {
	if len(interactions) == 0 {
		return 0
	}
	return 1 - normalizedEntropy(interactions)
}

func normalizedEntropy(values []string) float64 {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	if len(counts) <= 1 {
		return 0
	}

	total := float64(len(values))
	var entropy float64
	for _, count := range counts {
		p := float64(count) / total
		entropy -= p * math.Log(p)
	}
	return entropy / math.Log(float64(len(counts)))
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

// Package analyzer mines observed blockchain transactions into per-address
// behavioral fingerprints and turns them into adversarial training scenarios.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/adversarial"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/validator"
	"github.com/shopspring/decimal"
)

// Function selectors that mark arbitrage-style activity. Anything else is
// ignored by Observe.
var arbitrageSelectors = map[string]string{
	"0x3b663803": "executeArbitrage",
	"0x38ed1739": "swapExactTokensForTokens",
	"0x18cbafe5": "swapExactTokensForETH",
	"0x7ff36ab5": "swapExactETHForTokens",
	"0x022c0d9f": "swap",
	"0x490e6cbc": "flash",
}

// Selector to routing guess.
var selectorDEX = map[string]string{
	"0x38ed1739": "uniswap-v2",
	"0x18cbafe5": "uniswap-v2",
	"0x7ff36ab5": "uniswap-v2",
	"0x022c0d9f": "uniswap-v2",
	"0x490e6cbc": "uniswap-v3",
}

const (
	historyLimit      = 100
	syntheticPerEvent = 3
	activityScale     = 20.0
	mitigationTokens  = 3
)

// LiquidityProvider and RouteFinder are the external mitigation
// collaborators. Execution of the plans they inform happens outside
// this core.
type LiquidityProvider interface {
	GetLiquidityDepth(ctx context.Context, token string) (decimal.Decimal, error)
}

type RouteFinder interface {
	FindAlternativeRoutes(ctx context.Context, tokens []string) ([][]string, error)
}

type Options struct {
	MinTransactions int
	MaxTrackingAge  time.Duration
	BaselineGasGwei float64
}

type Analyzer struct {
	mu sync.Mutex

	validator *validator.Validator
	generator *adversarial.Generator
	liquidity LiquidityProvider
	routes    RouteFinder

	patterns map[string]*models.CompetitorPattern
	history  map[string]*observationHistory

	minTransactions int
	maxTrackingAge  time.Duration
	baselineGas     float64
}

// observationHistory keeps the recent raw series behind a pattern so the
// consistency math can be recomputed incrementally.
type observationHistory struct {
	gasPrices    []float64
	timestamps   []time.Time
	interactions []string
}

func New(v *validator.Validator, g *adversarial.Generator, liquidity LiquidityProvider, routes RouteFinder, opts Options) *Analyzer {
	if opts.MinTransactions <= 0 {
		opts.MinTransactions = 5
	}
	if opts.MaxTrackingAge <= 0 {
		opts.MaxTrackingAge = 24 * time.Hour
	}
	if opts.BaselineGasGwei <= 0 {
		opts.BaselineGasGwei = 50
	}
	return &Analyzer{
		validator:       v,
		generator:       g,
		liquidity:       liquidity,
		routes:          routes,
		patterns:        make(map[string]*models.CompetitorPattern),
		history:         make(map[string]*observationHistory),
		minTransactions: opts.MinTransactions,
		maxTrackingAge:  opts.MaxTrackingAge,
		baselineGas:     opts.BaselineGasGwei,
	}
}

// Observe ingests one live transaction. Transactions without an
// arbitrage-style selector are ignored; invalid ones (per the integrity
// validator) never reach the stored pattern. Valid observations update the
// fingerprint, push one training step into the generator and return the
// mitigation plans prepared for the sampled synthetic scenarios.
func (a *Analyzer) Observe(ctx context.Context, tx models.ObservedTransaction, chainID int64) ([]models.MitigationPlan, error) {
	selector := leadingSelector(tx.Data)
	if _, known := arbitrageSelectors[selector]; !known {
		return nil, nil
	}

	a.mu.Lock()
	key := patternKey(chainID, tx.From)
	pattern := a.patterns[key]

	result := a.validator.ValidateTransaction(tx, pattern)
	if !result.IsValid {
		a.mu.Unlock()
		logger.Log.WithFields(map[string]interface{}{
			"tx_hash":      tx.Hash,
			"from":         tx.From,
			"threat_level": result.ThreatLevel,
			"safety_score": result.SafetyScore,
		}).Warn("Transaction rejected by integrity validator")
		return nil, nil
	}

	if pattern == nil {
		pattern = newPattern(chainID, tx.From)
		a.patterns[key] = pattern
		a.history[key] = &observationHistory{}
	}
	a.mergeObservation(pattern, a.history[key], tx, selector, result.SafetyScore)
	scenario := a.deriveScenario(pattern, tx)
	snapshot := snapshotPattern(pattern)
	a.pruneStaleLocked(time.Now())
	a.mu.Unlock()

	// Generator calls happen outside the pattern lock; training can take a
	// while and the generator guards its own state. Mitigation reads the
	// snapshot so concurrent observations cannot mutate the maps under it.
	if _, err := a.generator.TrainOn([]models.SimulationScenario{scenario}, 1, 1); err != nil {
		return nil, fmt.Errorf("generator training step: %w", err)
	}

	synthetic := a.generator.Sample(syntheticPerEvent)
	plans := make([]models.MitigationPlan, 0, len(synthetic))
	for _, candidate := range synthetic {
		plan := a.prepareMitigation(ctx, candidate, snapshot)
		plans = append(plans, plan)
	}
	return plans, nil
}

// AnalyzeCompetitor is the pure offline variant: it fingerprints an address
// from a supplied transaction list without touching stored state. Below the
// minimum transaction count everything stays conservatively zeroed.
func (a *Analyzer) AnalyzeCompetitor(address string, history []models.ObservedTransaction) models.CompetitorPattern {
	pattern := *newPattern(0, address)
	if len(history) < a.minTransactions {
		return pattern
	}

	var successes int
	gasSum := decimal.Zero
	gasPrices := make([]float64, 0, len(history))
	var timestamps []time.Time
	var interactions []string
	for _, tx := range history {
		if tx.Status == "success" {
			successes++
		}
		gasSum = gasSum.Add(tx.GasPrice)
		gasPrices = append(gasPrices, tx.GasPrice.InexactFloat64())
		timestamps = append(timestamps, tx.Timestamp)
		interactions = append(interactions, tx.To+"|"+leadingSelector(tx.Data))
		if tx.Timestamp.After(pattern.LastSeen) {
			pattern.LastSeen = tx.Timestamp
		}
	}

	pattern.TransactionCount = len(history)
	pattern.SuccessRate = float64(successes) / float64(len(history))
	pattern.AvgGasPrice = gasSum.Div(decimal.NewFromInt(int64(len(history))))
	pattern.PatternStrength = patternStrength(gasPrices, intervalsOf(timestamps), interactions)
	pattern.TimeConsistency = timeConsistency(intervalsOf(timestamps))
	return pattern
}

// Pattern returns a copy of the stored fingerprint for (chain, address).
func (a *Analyzer) Pattern(chainID int64, address string) (models.CompetitorPattern, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pattern, ok := a.patterns[patternKey(chainID, address)]
	if !ok {
		return models.CompetitorPattern{}, false
	}
	return *snapshotPattern(pattern), true
}

func (a *Analyzer) mergeObservation(pattern *models.CompetitorPattern, hist *observationHistory, tx models.ObservedTransaction, selector string, safetyScore float64) {
	count := decimal.NewFromInt(int64(pattern.TransactionCount))
	next := count.Add(decimal.NewFromInt(1))

	pattern.AvgGasPrice = pattern.AvgGasPrice.Mul(count).Add(tx.GasPrice).Div(next)
	pattern.AvgProfit = pattern.AvgProfit.Mul(count).Add(tx.Profit).Div(next)
	pattern.QuantumSafety = movingAverage(pattern.QuantumSafety, safetyScore, pattern.TransactionCount)
	if tx.Status == "success" {
		pattern.SuccessRate = movingAverage(pattern.SuccessRate, 1, pattern.TransactionCount)
	} else {
		pattern.SuccessRate = movingAverage(pattern.SuccessRate, 0, pattern.TransactionCount)
	}
	pattern.TransactionCount++
	pattern.LastSeen = tx.Timestamp
	pattern.KnownSelectors[selector] = true
	for _, token := range extractTokenAddresses(tx.Data) {
		pattern.PreferredTokens[token] = true
	}
	if dex, ok := selectorDEX[selector]; ok && !containsString(pattern.Routing.DEXes, dex) {
		pattern.Routing.DEXes = append(pattern.Routing.DEXes, dex)
	}
	if !containsInt64(pattern.Routing.Chains, pattern.ChainID) {
		pattern.Routing.Chains = append(pattern.Routing.Chains, pattern.ChainID)
	}

	hist.gasPrices = appendBounded(hist.gasPrices, tx.GasPrice.InexactFloat64())
	hist.timestamps = appendBoundedTime(hist.timestamps, tx.Timestamp)
	hist.interactions = appendBoundedString(hist.interactions, tx.To+"|"+selector)

	pattern.PatternStrength = patternStrength(hist.gasPrices, intervalsOf(hist.timestamps), hist.interactions)
	pattern.TimeConsistency = timeConsistency(intervalsOf(hist.timestamps))
}

// deriveScenario turns the updated fingerprint into a stress vector
// proportional to the counterparty's activity and its gas deviation from the
// baseline.
func (a *Analyzer) deriveScenario(pattern *models.CompetitorPattern, tx models.ObservedTransaction) models.SimulationScenario {
	activity := float64(pattern.TransactionCount) / activityScale
	if activity > 1 {
		activity = 1
	}

	gas := tx.GasPrice.InexactFloat64()
	deviation := (gas - a.baselineGas) / a.baselineGas
	spike := deviation
	if spike < 0 {
		spike = 0
	}
	if spike > 1 {
		spike = 1
	}

	volatility := deviation
	if volatility < 0 {
		volatility = -volatility
	}
	if volatility > 1 {
		volatility = 1
	}

	return models.SimulationScenario{
		LiquidityShock:     clamp01(activity * pattern.SuccessRate),
		GasPriceSpike:      spike,
		CompetitorActivity: activity,
		MarketVolatility:   volatility,
	}
}

// pruneStaleLocked applies the max-tracking-age policy: fingerprints nobody
// has refreshed fall out of the table.
func (a *Analyzer) pruneStaleLocked(now time.Time) {
	cutoff := now.Add(-a.maxTrackingAge)
	for key, pattern := range a.patterns {
		if !pattern.LastSeen.IsZero() && pattern.LastSeen.Before(cutoff) {
			delete(a.patterns, key)
			delete(a.history, key)
		}
	}
}

// snapshotPattern copies the fingerprint, maps and slices included, so it
// can be read after the analyzer lock is released.
func snapshotPattern(p *models.CompetitorPattern) *models.CompetitorPattern {
	if p == nil {
		return nil
	}
	out := *p
	out.KnownSelectors = make(map[string]bool, len(p.KnownSelectors))
	for k, v := range p.KnownSelectors {
		out.KnownSelectors[k] = v
	}
	out.PreferredTokens = make(map[string]bool, len(p.PreferredTokens))
	for k, v := range p.PreferredTokens {
		out.PreferredTokens[k] = v
	}
	out.Routing.DEXes = append([]string(nil), p.Routing.DEXes...)
	out.Routing.Chains = append([]int64(nil), p.Routing.Chains...)
	return &out
}

func newPattern(chainID int64, address string) *models.CompetitorPattern {
	return &models.CompetitorPattern{
		Address:         address,
		ChainID:         chainID,
		AvgGasPrice:     decimal.Zero,
		AvgProfit:       decimal.Zero,
		KnownSelectors:  make(map[string]bool),
		PreferredTokens: make(map[string]bool),
	}
}

func patternKey(chainID int64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address))
}

func leadingSelector(data string) string {
	if len(data) < 10 || !strings.HasPrefix(data, "0x") {
		return ""
	}
	return strings.ToLower(data[:10])
}

// extractTokenAddresses scans the word-aligned calldata for values shaped
// like addresses (12 zero bytes followed by 20 non-zero bytes).
func extractTokenAddresses(data string) []string {
	if len(data) <= 10 {
		return nil
	}
	payload := data[10:]
	var tokens []string
	for start := 0; start+64 <= len(payload); start += 64 {
		word := payload[start : start+64]
		if strings.HasPrefix(word, strings.Repeat("0", 24)) && strings.Trim(word[24:], "0") != "" {
			tokens = append(tokens, "0x"+word[24:])
		}
	}
	return tokens
}

func intervalsOf(timestamps []time.Time) []float64 {
	if len(timestamps) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		intervals = append(intervals, timestamps[i].Sub(timestamps[i-1]).Seconds())
	}
	return intervals
}

func movingAverage(current, sample float64, count int) float64 {
	return (current*float64(count) + sample) / float64(count+1)
}

func appendBounded(series []float64, v float64) []float64 {
	series = append(series, v)
	if len(series) > historyLimit {
		series = series[1:]
	}
	return series
}

func appendBoundedTime(series []time.Time, v time.Time) []time.Time {
	series = append(series, v)
	if len(series) > historyLimit {
		series = series[1:]
	}
	return series
}

func appendBoundedString(series []string, v string) []string {
	series = append(series, v)
	if len(series) > historyLimit {
		series = series[1:]
	}
	return series
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func containsInt64(values []int64, v int64) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/adversarial"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/validator"
	"github.com/shopspring/decimal"
)

const (
	testCompetitor = "0xCompetitorAAAA000000000000000000000000001"
	testChainID    = int64(1)
)

type staticLiquidity struct {
	depth decimal.Decimal
}

func (p staticLiquidity) GetLiquidityDepth(ctx context.Context, token string) (decimal.Decimal, error) {
	return p.depth, nil
}

type staticRoutes struct{}

func (staticRoutes) FindAlternativeRoutes(ctx context.Context, tokens []string) ([][]string, error) {
	return [][]string{{"0xaaa", "0xbbb"}}, nil
}

func newTestAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	v, err := validator.New(validator.Options{
		Scheme:       validator.SchemeHMACSHA256,
		Key:          "analyzer-test",
		MinDimension: 32,
	}, nil)
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	g := adversarial.NewGenerator(t.TempDir())
	return New(v, g, staticLiquidity{depth: decimal.NewFromInt(1000)}, staticRoutes{}, opts)
}

// calldata with the executeArbitrage selector and one token-shaped word
func arbitrageCalldata(token string) string {
	word := strings.Repeat("0", 24) + strings.TrimPrefix(token, "0x")
	return "0x3b663803" + word
}

func observedTx(i int, base time.Time, gasGwei int64) models.ObservedTransaction {
	return models.ObservedTransaction{
		Hash:      fmt.Sprintf("0xhash%04d", i),
		From:      testCompetitor,
		To:        "0xRouter00000000000000000000000000000000001",
		Data:      arbitrageCalldata("0x1111111111111111111111111111111111111111"),
		GasPrice:  decimal.NewFromInt(gasGwei),
		Profit:    decimal.NewFromFloat(0.05),
		Status:    "success",
		Timestamp: base.Add(time.Duration(i) * time.Second),
	}
}

func TestObserveIgnoresUnknownSelectors(t *testing.T) {
	a := newTestAnalyzer(t, Options{})

	tx := observedTx(0, time.Now(), 50)
	tx.Data = "0xdeadbeef" + strings.Repeat("0", 64)
	plans, err := a.Observe(context.Background(), tx, testChainID)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if plans != nil {
		t.Errorf("plans for non-arbitrage selector: %v", plans)
	}
	if _, ok := a.Pattern(testChainID, testCompetitor); ok {
		t.Error("pattern created for ignored transaction")
	}
}

func TestObserveBuildsPatternFromRegularActivity(t *testing.T) {
	a := newTestAnalyzer(t, Options{})

	base := time.Now().Add(-20 * time.Second)
	gas := []int64{50, 51, 49, 50, 52, 48, 50, 51, 49, 50, 50, 51, 49, 52, 48, 50, 51, 49, 50, 50}
	var lastPlans []models.MitigationPlan
	for i := 0; i < 20; i++ {
		plans, err := a.Observe(context.Background(), observedTx(i, base, gas[i]), testChainID)
		if err != nil {
			t.Fatalf("Observe #%d: %v", i, err)
		}
		lastPlans = plans
	}

	pattern, ok := a.Pattern(testChainID, testCompetitor)
	if !ok {
		t.Fatal("no pattern after 20 observations")
	}
	if pattern.TransactionCount != 20 {
		t.Errorf("transaction count = %d, want 20", pattern.TransactionCount)
	}
	if pattern.PatternStrength <= 0.7 {
		t.Errorf("pattern strength = %.3f, want > 0.7 for metronomic activity", pattern.PatternStrength)
	}
	if pattern.TimeConsistency <= 0.7 {
		t.Errorf("time consistency = %.3f, want > 0.7", pattern.TimeConsistency)
	}
	if !pattern.KnownSelectors["0x3b663803"] {
		t.Error("executeArbitrage selector not recorded")
	}
	if !pattern.PreferredTokens["0x1111111111111111111111111111111111111111"] {
		t.Error("token address not extracted from calldata")
	}
	if pattern.SuccessRate != 1 {
		t.Errorf("success rate = %.3f, want 1", pattern.SuccessRate)
	}

	if len(lastPlans) != syntheticPerEvent {
		t.Fatalf("plans = %d, want %d", len(lastPlans), syntheticPerEvent)
	}
	for _, plan := range lastPlans {
		if plan.Scenario.CompetitorActivity < 0 || plan.Scenario.CompetitorActivity > 1 {
			t.Errorf("competitor activity %.3f out of [0,1]", plan.Scenario.CompetitorActivity)
		}
		if len(plan.Tokens) == 0 {
			t.Error("mitigation plan carries no tokens")
		}
		for _, depth := range plan.LiquidityDepth {
			if !depth.Equal(decimal.NewFromInt(1000)) {
				t.Errorf("liquidity depth = %s, want 1000", depth)
			}
		}
	}
}

func TestDeriveScenarioGasSpike(t *testing.T) {
	a := newTestAnalyzer(t, Options{BaselineGasGwei: 50})

	pattern := &models.CompetitorPattern{TransactionCount: 40, SuccessRate: 0.9}
	tx := models.ObservedTransaction{GasPrice: decimal.NewFromInt(100)}

	scenario := a.deriveScenario(pattern, tx)
	if scenario.GasPriceSpike != 1 {
		t.Errorf("gas spike = %.3f, want 1 for doubled gas", scenario.GasPriceSpike)
	}
	if scenario.CompetitorActivity != 1 {
		t.Errorf("activity = %.3f, want capped at 1", scenario.CompetitorActivity)
	}
	if scenario.MarketVolatility != 1 {
		t.Errorf("volatility = %.3f, want 1", scenario.MarketVolatility)
	}

	calm := a.deriveScenario(&models.CompetitorPattern{TransactionCount: 2, SuccessRate: 0.5},
		models.ObservedTransaction{GasPrice: decimal.NewFromInt(50)})
	if calm.GasPriceSpike != 0 {
		t.Errorf("gas spike = %.3f at baseline, want 0", calm.GasPriceSpike)
	}
}

func TestAnalyzeCompetitorBelowMinimum(t *testing.T) {
	a := newTestAnalyzer(t, Options{MinTransactions: 5})

	history := []models.ObservedTransaction{
		observedTx(0, time.Now(), 50),
		observedTx(1, time.Now(), 50),
	}
	pattern := a.AnalyzeCompetitor(testCompetitor, history)
	if pattern.TransactionCount != 0 || pattern.PatternStrength != 0 {
		t.Errorf("pattern not zeroed below minimum: count=%d strength=%.3f",
			pattern.TransactionCount, pattern.PatternStrength)
	}
}

func TestAnalyzeCompetitorBatch(t *testing.T) {
	a := newTestAnalyzer(t, Options{MinTransactions: 5})

	base := time.Now()
	history := make([]models.ObservedTransaction, 10)
	for i := range history {
		history[i] = observedTx(i, base, 50)
	}
	history[3].Status = "reverted"

	pattern := a.AnalyzeCompetitor(testCompetitor, history)
	if pattern.TransactionCount != 10 {
		t.Errorf("count = %d, want 10", pattern.TransactionCount)
	}
	if pattern.SuccessRate != 0.9 {
		t.Errorf("success rate = %.3f, want 0.9", pattern.SuccessRate)
	}
	if !pattern.AvgGasPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("avg gas = %s, want 50", pattern.AvgGasPrice)
	}
	if pattern.PatternStrength <= 0.7 {
		t.Errorf("strength = %.3f, want > 0.7", pattern.PatternStrength)
	}
}

func TestPruneStaleFingerprints(t *testing.T) {
	a := newTestAnalyzer(t, Options{MaxTrackingAge: time.Hour})

	key := patternKey(testChainID, testCompetitor)
	a.patterns[key] = &models.CompetitorPattern{LastSeen: time.Now().Add(-2 * time.Hour)}
	a.history[key] = &observationHistory{}

	a.mu.Lock()
	a.pruneStaleLocked(time.Now())
	a.mu.Unlock()

	if _, ok := a.patterns[key]; ok {
		t.Error("stale fingerprint survived pruning")
	}
}

func TestLeadingSelector(t *testing.T) {
	if got := leadingSelector("0x3B663803" + strings.Repeat("0", 64)); got != "0x3b663803" {
		t.Errorf("selector = %q, want lowercased 0x3b663803", got)
	}
	if got := leadingSelector("0xab"); got != "" {
		t.Errorf("selector for short calldata = %q, want empty", got)
	}
	if got := leadingSelector("3b6638030000"); got != "" {
		t.Errorf("selector without 0x prefix = %q, want empty", got)
	}
}

func TestPatternStrengthDegradesWithNoise(t *testing.T) {
	regularGas := []float64{50, 50, 51, 49, 50, 50, 51, 49}
	noisyGas := []float64{10, 200, 45, 300, 5, 90, 500, 20}
	intervals := []float64{1, 1, 1, 1, 1, 1, 1}
	interactions := []string{"a|s", "a|s", "a|s", "a|s", "a|s", "a|s", "a|s", "a|s"}

	regular := patternStrength(regularGas, intervals, interactions)
	noisy := patternStrength(noisyGas, intervals, interactions)
	if regular <= noisy {
		t.Errorf("regular strength %.3f not above noisy %.3f", regular, noisy)
	}
	if regular <= 0.7 {
		t.Errorf("regular strength = %.3f, want > 0.7", regular)
	}
}

func TestObserveConcurrentCounterparties(t *testing.T) {
	a := newTestAnalyzer(t, Options{})

	const (
		workers      = 8
		observations = 25
	)
	base := time.Now().Add(-time.Duration(observations) * time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			from := fmt.Sprintf("0xCompetitor%030d", w)
			for i := 0; i < observations; i++ {
				tx := observedTx(i, base, 50)
				tx.From = from
				tx.Hash = fmt.Sprintf("0xhash-%d-%04d", w, i)
				if _, err := a.Observe(context.Background(), tx, testChainID); err != nil {
					errs <- fmt.Errorf("worker %d observe #%d: %w", w, i, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	for w := 0; w < workers; w++ {
		from := fmt.Sprintf("0xCompetitor%030d", w)
		pattern, ok := a.Pattern(testChainID, from)
		if !ok {
			t.Fatalf("no pattern for worker %d counterparty", w)
		}
		if pattern.TransactionCount != observations {
			t.Errorf("worker %d transaction count = %d, want %d", w, pattern.TransactionCount, observations)
		}
	}
}

func TestPatternSnapshotIsolatedFromLaterObservations(t *testing.T) {
	a := newTestAnalyzer(t, Options{})

	base := time.Now().Add(-20 * time.Second)
	for i := 0; i < 5; i++ {
		if _, err := a.Observe(context.Background(), observedTx(i, base, 50), testChainID); err != nil {
			t.Fatalf("Observe #%d: %v", i, err)
		}
	}

	snapshot, ok := a.Pattern(testChainID, testCompetitor)
	if !ok {
		t.Fatal("no pattern after observations")
	}

	tx := observedTx(5, base, 50)
	tx.Data = arbitrageCalldata("0x2222222222222222222222222222222222222222")
	if _, err := a.Observe(context.Background(), tx, testChainID); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	if snapshot.PreferredTokens["0x2222222222222222222222222222222222222222"] {
		t.Error("snapshot shares token map with live pattern")
	}
	if snapshot.TransactionCount != 5 {
		t.Errorf("snapshot count mutated to %d", snapshot.TransactionCount)
	}
}

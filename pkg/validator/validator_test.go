package validator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

type fakeSink struct {
	alerts       []models.PerformanceAlert
	remediations []string
	resolved     []string
}

func (s *fakeSink) PersistAlert(ctx context.Context, alert models.PerformanceAlert) error {
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *fakeSink) GetActiveAlerts(ctx context.Context) ([]models.PerformanceAlert, error) {
	return s.alerts, nil
}

func (s *fakeSink) MarkRemediationApplied(ctx context.Context, alertID string) error {
	s.remediations = append(s.remediations, alertID)
	return nil
}

func (s *fakeSink) MarkAlertResolved(ctx context.Context, alertID string) error {
	s.resolved = append(s.resolved, alertID)
	return nil
}

func newTestValidator(t *testing.T, opts Options, sink AlertSink) *Validator {
	t.Helper()
	if opts.Scheme == "" {
		opts.Scheme = SchemeHMACSHA256
	}
	if opts.Key == "" {
		opts.Key = "test-key"
	}
	if opts.MinDimension == 0 {
		opts.MinDimension = 32
	}
	v, err := New(opts, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNewRejectsUnknownScheme(t *testing.T) {
	_, err := New(Options{Scheme: "rot13"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown signing scheme")
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	v := newTestValidator(t, Options{}, nil)

	sig, err := v.GenerateSignature([]byte("payload"))
	if err != nil {
		t.Fatalf("GenerateSignature: %v", err)
	}
	if sig.Challenge == "" || sig.Response == "" {
		t.Fatal("signature missing challenge or response")
	}
	if len(sig.Lattice.Basis) != 32 {
		t.Fatalf("basis dimension = %d, want 32", len(sig.Lattice.Basis))
	}

	if !v.VerifySignature([]byte("payload"), sig) {
		t.Error("signature did not verify against original payload")
	}
	if v.VerifySignature([]byte("tampered"), sig) {
		t.Error("signature verified against different payload")
	}
}

func TestSignatureChallengesDiffer(t *testing.T) {
	v := newTestValidator(t, Options{}, nil)

	a, err := v.GenerateSignature([]byte("one"))
	if err != nil {
		t.Fatalf("GenerateSignature: %v", err)
	}
	b, err := v.GenerateSignature([]byte("two"))
	if err != nil {
		t.Fatalf("GenerateSignature: %v", err)
	}
	if a.Challenge == b.Challenge {
		t.Error("different payloads produced identical challenges")
	}
}

func TestSignatureExpiresAfterChallengeWindow(t *testing.T) {
	v := newTestValidator(t, Options{ChallengeWindow: 50 * time.Millisecond}, nil)

	sig, err := v.GenerateSignature([]byte("payload"))
	if err != nil {
		t.Fatalf("GenerateSignature: %v", err)
	}
	if !v.VerifySignature([]byte("payload"), sig) {
		t.Fatal("fresh signature did not verify")
	}

	time.Sleep(120 * time.Millisecond)
	if v.VerifySignature([]byte("payload"), sig) {
		t.Error("signature verified after challenge window elapsed")
	}
}

func TestChainedSchemeDiffersFromHMAC(t *testing.T) {
	key := []byte("k")
	hmacResp := hmacScheme{}.Respond(key, "chal", "digest")
	chainResp := chainedScheme{rounds: 3}.Respond(key, "chal", "digest")
	if hmacResp == chainResp {
		t.Error("chained scheme produced the same response as plain hmac")
	}
}

func TestMerkleRootDeterministic(t *testing.T) {
	v := newTestValidator(t, Options{}, nil)

	hashes := []string{"a", "b", "c", "d", "e"}
	first := v.MerkleRoot(hashes)
	second := v.MerkleRoot(hashes)
	if first == "" {
		t.Fatal("empty root for non-empty input")
	}
	if first != second {
		t.Errorf("roots differ for identical input: %s vs %s", first, second)
	}

	other := v.MerkleRoot([]string{"a", "b", "c", "d", "f"})
	if other == first {
		t.Error("different leaf sets produced the same root")
	}
}

func TestMerkleRootSingleElementPassthrough(t *testing.T) {
	v := newTestValidator(t, Options{}, nil)

	if got := v.MerkleRoot([]string{"solo"}); got != "solo" {
		t.Errorf("single-element root = %q, want passthrough", got)
	}
	if got := v.MerkleRoot(nil); got != "" {
		t.Errorf("empty root = %q, want empty string", got)
	}
}

func TestMerkleCacheHitsAndEviction(t *testing.T) {
	v := newTestValidator(t, Options{CacheSize: 2}, nil)

	v.MerkleRoot([]string{"a", "b"})
	v.MerkleRoot([]string{"a", "b"})

	m := v.Metrics(context.Background())
	if m.CacheHits != 1 || m.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", m.CacheHits, m.CacheMisses)
	}

	// two more distinct sequences evict the first entry (FIFO, capacity 2)
	v.MerkleRoot([]string{"c", "d"})
	v.MerkleRoot([]string{"e", "f"})
	if v.cache.len() != 2 {
		t.Fatalf("cache size = %d, want 2", v.cache.len())
	}

	v.MerkleRoot([]string{"a", "b"})
	m = v.Metrics(context.Background())
	if m.CacheMisses != 4 {
		t.Errorf("misses = %d, want 4 after eviction", m.CacheMisses)
	}
}

func TestMerkleParallelMatchesSerial(t *testing.T) {
	serial := newTestValidator(t, Options{ParallelChunkSize: 1 << 20}, nil)
	parallel := newTestValidator(t, Options{ParallelChunkSize: 4}, nil)

	hashes := make([]string, 64)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("leaf-%03d", i)
	}

	if s, p := serial.MerkleRoot(hashes), parallel.MerkleRoot(hashes); s != p {
		t.Errorf("parallel root %s != serial root %s", p, s)
	}

	m := parallel.Metrics(context.Background())
	if m.ParallelOps == 0 {
		t.Error("parallel reduction never engaged for 64 leaves")
	}
}

func TestTemporalChainValidates(t *testing.T) {
	v := newTestValidator(t, Options{TemporalWindow: time.Hour}, nil)

	history := []float64{10, 11, 10, 12}
	var prev string
	for i := 0; i < 5; i++ {
		entry, err := v.AppendTemporalHash(10+float64(i), history)
		if err != nil {
			t.Fatalf("AppendTemporalHash: %v", err)
		}
		if entry.Hash == prev {
			t.Fatal("consecutive entries share a hash")
		}
		prev = entry.Hash
	}

	if got := v.ChainLength(); got != 5 {
		t.Fatalf("chain length = %d, want 5", got)
	}
	if err := v.ValidateTemporalChain(); err != nil {
		t.Errorf("ValidateTemporalChain: %v", err)
	}
}

func TestTemporalChainDetectsTampering(t *testing.T) {
	v := newTestValidator(t, Options{TemporalWindow: time.Hour}, nil)

	for i := 0; i < 4; i++ {
		if _, err := v.AppendTemporalHash(float64(i), nil); err != nil {
			t.Fatalf("AppendTemporalHash: %v", err)
		}
	}

	v.chain[1].latency += 1000
	if err := v.ValidateTemporalChain(); err == nil {
		t.Error("tampered latency went undetected")
	}
}

func TestTemporalChainDetectsReorderedTimestamps(t *testing.T) {
	v := newTestValidator(t, Options{TemporalWindow: time.Hour}, nil)

	for i := 0; i < 4; i++ {
		if _, err := v.AppendTemporalHash(float64(i), nil); err != nil {
			t.Fatalf("AppendTemporalHash: %v", err)
		}
	}

	v.chain[2].entry.Timestamp = v.chain[0].entry.Timestamp
	if err := v.ValidateTemporalChain(); err == nil {
		t.Error("non-increasing timestamp went undetected")
	}
}

func TestTemporalChainTimestampsStrictlyIncrease(t *testing.T) {
	v := newTestValidator(t, Options{TemporalWindow: time.Hour}, nil)

	var last time.Time
	for i := 0; i < 50; i++ {
		entry, err := v.AppendTemporalHash(1, nil)
		if err != nil {
			t.Fatalf("AppendTemporalHash: %v", err)
		}
		if !entry.Timestamp.After(last) {
			t.Fatalf("timestamp %v not after %v", entry.Timestamp, last)
		}
		last = entry.Timestamp
	}
}

func TestTemporalChainPrunesOutsideWindow(t *testing.T) {
	v := newTestValidator(t, Options{TemporalWindow: 10 * time.Millisecond, TreeHeight: 3}, nil)

	for i := 0; i < 6; i++ {
		if _, err := v.AppendTemporalHash(1, nil); err != nil {
			t.Fatalf("AppendTemporalHash: %v", err)
		}
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := v.AppendTemporalHash(1, nil); err != nil {
		t.Fatalf("AppendTemporalHash: %v", err)
	}

	// everything older than the window is gone except the guaranteed tail
	if got := v.ChainLength(); got != 3 {
		t.Errorf("chain length = %d, want treeHeight tail of 3", got)
	}
	if err := v.ValidateTemporalChain(); err != nil {
		t.Errorf("chain invalid after pruning: %v", err)
	}
}

func TestValidateTransactionBenign(t *testing.T) {
	v := newTestValidator(t, Options{MinDimension: 64}, nil)

	result := v.ValidateTransaction(models.ObservedTransaction{
		Hash:      "0xabc",
		Timestamp: time.Now(),
	}, nil)

	if !result.IsValid {
		t.Fatalf("benign transaction rejected: score=%.3f recs=%v", result.SafetyScore, result.Recommendations)
	}
	if result.ThreatLevel != models.ThreatLow {
		t.Errorf("threat level = %s, want %s", result.ThreatLevel, models.ThreatLow)
	}
}

func TestValidateTransactionStaleCounterparty(t *testing.T) {
	v := newTestValidator(t, Options{MinDimension: 64, ChallengeWindow: time.Minute}, nil)

	pattern := &models.CompetitorPattern{
		LastSeen:         time.Now().Add(-2 * time.Hour),
		TransactionCount: 10,
		TimeConsistency:  0.9,
	}
	result := v.ValidateTransaction(models.ObservedTransaction{
		Hash:      "0xdef",
		Timestamp: time.Now(),
	}, pattern)

	if result.IsValid {
		t.Error("stale counterparty accepted")
	}
	if len(result.Recommendations) == 0 {
		t.Error("no recommendations for rejected transaction")
	}
}

func TestValidateTransactionFailsClosed(t *testing.T) {
	v := newTestValidator(t, Options{}, nil)
	v.scheme = nil // force a panic in signature generation

	result := v.ValidateTransaction(models.ObservedTransaction{Hash: "0x1"}, nil)
	if result == nil {
		t.Fatal("nil result from panicking validation")
	}
	if result.IsValid {
		t.Error("panicking validation reported valid")
	}
	if result.ThreatLevel != models.ThreatHigh {
		t.Errorf("threat level = %s, want %s", result.ThreatLevel, models.ThreatHigh)
	}
}

func TestValidateModelState(t *testing.T) {
	v := newTestValidator(t, Options{MinDimension: 64}, nil)

	result := v.ValidateModelState([]byte(`{"weights":[0.1,0.2]}`))
	if !result.IsValid {
		t.Errorf("model state rejected: score=%.3f", result.SafetyScore)
	}

	sigA := v.SignModelState([]byte("weights-a"))
	if sigA != v.SignModelState([]byte("weights-a")) {
		t.Error("model-state signature not deterministic")
	}
	if sigA == v.SignModelState([]byte("weights-b")) {
		t.Error("different weights share a signature")
	}
}

// relaxed limits so only the cache-hit-rate threshold can fire
func cacheOnlyThresholds() Thresholds {
	return Thresholds{
		MaxGenerationTime:   time.Hour,
		MinCacheHitRate:     0.9,
		MaxParallelOpsRatio: 1000,
		MaxBufferReuseRatio: 1000,
	}
}

func TestEscalationRemediatesAfterThreeHighs(t *testing.T) {
	sink := &fakeSink{}
	v := newTestValidator(t, Options{Thresholds: cacheOnlyThresholds()}, sink)

	// all-distinct lookups keep the hit rate at 0, twice the 0.9 floor away
	v.MerkleRoot([]string{"a", "b"})
	v.MerkleRoot([]string{"c", "d"})

	ctx := context.Background()
	v.Metrics(ctx)
	v.Metrics(ctx)
	if len(sink.remediations) != 0 {
		t.Fatalf("remediation fired after %d highs, want 3", 2)
	}

	v.Metrics(ctx)
	if len(sink.remediations) != 1 {
		t.Fatalf("remediations = %d, want exactly 1", len(sink.remediations))
	}
	if len(sink.resolved) != 1 {
		t.Errorf("resolved alerts = %d, want 1", len(sink.resolved))
	}
	if len(sink.alerts) != 3 {
		t.Errorf("persisted alerts = %d, want 3", len(sink.alerts))
	}

	// cache-hit-rate remediation clears the cache and its counters
	if v.cache.len() != 0 {
		t.Errorf("cache size = %d after remediation, want 0", v.cache.len())
	}
	m := v.Metrics(ctx)
	if m.CacheHits != 0 || m.CacheMisses != 0 {
		t.Errorf("counters = %d/%d after remediation, want 0/0", m.CacheHits, m.CacheMisses)
	}

	// counters reset means no traffic, so the streak must not rebuild
	v.Metrics(ctx)
	v.Metrics(ctx)
	v.Metrics(ctx)
	if len(sink.remediations) != 1 {
		t.Errorf("remediations = %d after reset, want still 1", len(sink.remediations))
	}
}

func TestEscalationStreakResetsOnRecovery(t *testing.T) {
	sink := &fakeSink{}
	v := newTestValidator(t, Options{Thresholds: cacheOnlyThresholds()}, sink)

	v.MerkleRoot([]string{"a", "b"})

	ctx := context.Background()
	v.Metrics(ctx)
	v.Metrics(ctx)

	// lift the hit rate to 0.75: still alerting, but only at LOW severity,
	// which must reset the HIGH streak
	for i := 0; i < 3; i++ {
		v.MerkleRoot([]string{"a", "b"})
	}
	v.Metrics(ctx)

	// a single fresh high must not remediate
	for i := 0; i < 400; i++ {
		v.MerkleRoot([]string{fmt.Sprintf("x%d", i), fmt.Sprintf("y%d", i)})
	}
	v.Metrics(ctx)

	if len(sink.remediations) != 0 {
		t.Errorf("remediations = %d, want 0 after streak reset", len(sink.remediations))
	}
}

func TestSeverityTiers(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{0.5, ""},
		{1.0, models.SeverityLow},
		{1.4, models.SeverityLow},
		{1.5, models.SeverityMedium},
		{1.9, models.SeverityMedium},
		{2.0, models.SeverityHigh},
		{3.7, models.SeverityHigh},
	}
	for _, tc := range cases {
		if got := severityForRatio(tc.ratio); got != tc.want {
			t.Errorf("severityForRatio(%.1f) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestTemporalConsistencyAnomalies(t *testing.T) {
	window := []float64{10, 10, 11, 10, 10, 11, 10, 10}

	steady := TemporalConsistency(10, window)
	spike := TemporalConsistency(100, window)
	if steady <= spike {
		t.Errorf("steady sample %.3f not scored above spike %.3f", steady, spike)
	}
	if spike > 0.5 {
		t.Errorf("extreme spike scored %.3f, want <= 0.5", spike)
	}

	if got := TemporalConsistency(5, []float64{7}); got != 1 {
		t.Errorf("short window consistency = %.3f, want 1", got)
	}
}

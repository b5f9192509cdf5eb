// Package validator issues and verifies challenge/response signatures over
// transactions and model snapshots, maintains a forward-secure temporal hash
// chain with a cached Merkle summary, and watches its own performance,
// remediating automatically when it degrades.
//
// A Validator owns all of its mutable state (chain, cache, counters,
// tunables) behind a single mutex. Concurrent validators keep independent
// chains and independent remediation state.
package validator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/config"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

const (
	weightLattice    = 0.4
	weightTemporal   = 0.3
	weightBehavioral = 0.3

	// Fixed stand-ins for model-state scoring where no counterparty context
	// exists. Inherited from the reference protocol, not a security claim.
	modelStateBehavioral = 0.90
	modelStateTemporal   = 0.95

	threatMediumFloor = 0.5
)

type Options struct {
	Scheme            string
	Key               string
	MinDimension      int
	MinSafetyScore    float64
	ChallengeWindow   time.Duration
	TemporalWindow    time.Duration
	TreeHeight        int
	CacheSize         int
	ParallelChunkSize int
	Thresholds        Thresholds
}

// OptionsFromConfig lifts the validator tunables out of the service config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Scheme:            cfg.SigningScheme,
		Key:               cfg.SigningKey,
		MinDimension:      cfg.LatticeMinDimension,
		MinSafetyScore:    cfg.MinSafetyScore,
		ChallengeWindow:   cfg.ChallengeWindow,
		TemporalWindow:    cfg.TemporalWindow,
		TreeHeight:        cfg.MerkleTreeHeight,
		CacheSize:         cfg.MerkleCacheSize,
		ParallelChunkSize: cfg.ParallelChunkSize,
	}
}

type Validator struct {
	mu sync.Mutex

	scheme          signingScheme
	key             []byte
	minDimension    int
	minSafetyScore  float64
	challengeWindow time.Duration
	temporalWindow  time.Duration
	thresholds      Thresholds

	// tunables mutated by automated remediation
	treeHeight        int
	parallelChunkSize int

	chain        []chainRecord
	cache        *merkleCache
	levelScratch []string
	perf         perfCounters
	escalation   map[string]int
	sink         AlertSink
	rng          *rand.Rand
}

// New builds a validator. An unknown signing scheme is a fatal configuration
// error; callers are expected to abort startup on it.
func New(opts Options, sink AlertSink) (*Validator, error) {
	scheme, err := newSigningScheme(opts.Scheme)
	if err != nil {
		return nil, err
	}

	if opts.MinDimension <= 0 {
		opts.MinDimension = 256
	}
	if opts.MinSafetyScore <= 0 {
		opts.MinSafetyScore = 0.8
	}
	if opts.ChallengeWindow <= 0 {
		opts.ChallengeWindow = 5 * time.Minute
	}
	if opts.TemporalWindow <= 0 {
		opts.TemporalWindow = 1000 * time.Millisecond
	}
	if opts.TreeHeight <= 0 {
		opts.TreeHeight = 10
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.ParallelChunkSize <= 0 {
		opts.ParallelChunkSize = 64
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = defaultThresholds()
	}

	return &Validator{
		scheme:            scheme,
		key:               []byte(opts.Key),
		minDimension:      opts.MinDimension,
		minSafetyScore:    opts.MinSafetyScore,
		challengeWindow:   opts.ChallengeWindow,
		temporalWindow:    opts.TemporalWindow,
		thresholds:        opts.Thresholds,
		treeHeight:        opts.TreeHeight,
		parallelChunkSize: opts.ParallelChunkSize,
		cache:             newMerkleCache(opts.CacheSize),
		escalation:        make(map[string]int),
		sink:              sink,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// GenerateSignature derives a fresh lattice basis, builds a challenge as a
// keyed hash of the input plus a timestamp nonce, and computes the response
// with the configured signing strategy.
func (v *Validator) GenerateSignature(data []byte) (models.QuantumSignature, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generateSignatureLocked(data)
}

func (v *Validator) generateSignatureLocked(data []byte) (models.QuantumSignature, error) {
	start := time.Now()

	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)
	basis := generateBasis(v.rng, v.minDimension)
	digest := basisDigest(basis)

	challenge := v.challenge(data, nonce)
	response := v.scheme.Respond(v.key, challenge, digest)
	recovery := sha256.Sum256([]byte(response + challenge))

	sig := models.QuantumSignature{
		Challenge:     challenge,
		Response:      response,
		RecoveryParam: hex.EncodeToString(recovery[:8]),
		Lattice: models.LatticeParams{
			Dimension: v.minDimension,
			Basis:     basis,
			Challenge: nonce,
		},
	}

	v.perf.generations++
	v.perf.totalGenTime += time.Since(start)
	return sig, nil
}

// VerifySignature reconstructs the challenge and response from the input and
// the signature's recorded nonce and basis. A nonce older than the challenge
// window fails verification outright: replays of expired challenges are
// rejected even when the hashes still line up.
func (v *Validator) VerifySignature(data []byte, sig models.QuantumSignature) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verifySignatureLocked(data, sig)
}

func (v *Validator) verifySignatureLocked(data []byte, sig models.QuantumSignature) bool {
	issuedNanos, err := strconv.ParseInt(sig.Lattice.Challenge, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(0, issuedNanos))
	if age > v.challengeWindow || age < -v.challengeWindow {
		return false
	}

	expectedChallenge := v.challenge(data, sig.Lattice.Challenge)
	if !hmac.Equal([]byte(expectedChallenge), []byte(sig.Challenge)) {
		return false
	}

	expectedResponse := v.scheme.Respond(v.key, sig.Challenge, basisDigest(sig.Lattice.Basis))
	return hmac.Equal([]byte(expectedResponse), []byte(sig.Response))
}

func (v *Validator) challenge(data []byte, nonce string) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write(data)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateTransaction gates one observed transaction against the counterparty
// context. It fails closed: any internal failure yields an invalid result at
// HIGH threat rather than an error.
func (v *Validator) ValidateTransaction(tx models.ObservedTransaction, pattern *models.CompetitorPattern) (result *models.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("panic", r).Error("Transaction validation panicked, failing closed")
			result = failClosed("internal validation failure")
		}
	}()

	v.mu.Lock()
	defer v.mu.Unlock()

	sig, err := v.generateSignatureLocked([]byte(tx.Hash))
	if err != nil {
		return failClosed("signature generation failed")
	}
	if !v.verifySignatureLocked([]byte(tx.Hash), sig) {
		return failClosed("signature verification failed")
	}

	lattice := latticeOrthogonality(sig)
	temporal := v.temporalScore(pattern, tx.Timestamp)
	behavioral := behavioralEntropyScore(pattern)

	safety := weightLattice*lattice + weightTemporal*temporal + weightBehavioral*behavioral

	result = &models.ValidationResult{
		SafetyScore: safety,
		ThreatLevel: threatLevel(safety),
	}
	result.IsValid = safety >= v.minSafetyScore

	if lattice < 0.8 {
		result.Recommendations = append(result.Recommendations, "lattice orthogonality below 0.8; regenerate basis")
	}
	if temporal < 0.8 {
		result.Recommendations = append(result.Recommendations, "temporal consistency low; counterparty outside challenge window")
	}
	if behavioral < 0.8 {
		result.Recommendations = append(result.Recommendations, "behavioral entropy low; counterparty pattern unstable")
	}
	if !result.IsValid && len(result.Recommendations) == 0 {
		result.Recommendations = append(result.Recommendations, "composite safety score below minimum threshold")
	}
	return result
}

// temporalScore grades the gap between the transaction and the
// counterparty's last observation against the challenge window. A first
// observation has nothing to be inconsistent with and scores full.
func (v *Validator) temporalScore(pattern *models.CompetitorPattern, observed time.Time) float64 {
	if pattern == nil || pattern.LastSeen.IsZero() {
		return 1
	}
	if observed.IsZero() {
		observed = time.Now()
	}
	gap := observed.Sub(pattern.LastSeen)
	if gap < 0 {
		gap = -gap
	}
	if gap > v.challengeWindow {
		return 0
	}
	return 1 - 0.5*float64(gap)/float64(v.challengeWindow)
}

// behavioralEntropyScore folds the counterparty's pattern stability into the
// composite. Sparse patterns fall back to the protocol's fixed stand-in.
func behavioralEntropyScore(pattern *models.CompetitorPattern) float64 {
	// TimeConsistency needs at least two inter-transaction intervals to
	// mean anything, so below three observations the stand-in applies.
	if pattern == nil || pattern.TransactionCount < 3 {
		return modelStateBehavioral
	}
	return 0.5*modelStateBehavioral + 0.5*pattern.TimeConsistency
}

// ValidateModelState scores a trained-model snapshot with the same shape as
// transaction validation, substituting the protocol's fixed temporal and
// behavioral terms since a model has no counterparty.
func (v *Validator) ValidateModelState(weights []byte) (result *models.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("panic", r).Error("Model state validation panicked, failing closed")
			result = failClosed("internal validation failure")
		}
	}()

	v.mu.Lock()
	defer v.mu.Unlock()

	sig, err := v.generateSignatureLocked(weights)
	if err != nil {
		return failClosed("signature generation failed")
	}
	if !v.verifySignatureLocked(weights, sig) {
		return failClosed("signature verification failed")
	}

	lattice := latticeOrthogonality(sig)
	safety := weightLattice*lattice + weightTemporal*modelStateTemporal + weightBehavioral*modelStateBehavioral

	result = &models.ValidationResult{
		SafetyScore: safety,
		ThreatLevel: threatLevel(safety),
		IsValid:     safety >= v.minSafetyScore,
	}
	if !result.IsValid {
		result.Recommendations = append(result.Recommendations, "model state safety below minimum threshold")
	}
	return result
}

// SignModelState produces the deterministic content-addressed signature used
// for checkpoint tamper-evidence.
func (v *Validator) SignModelState(weights []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write(weights)
	return hex.EncodeToString(mac.Sum(nil))
}

func threatLevel(safety float64) string {
	switch {
	case safety >= 0.8:
		return models.ThreatLow
	case safety >= threatMediumFloor:
		return models.ThreatMedium
	default:
		return models.ThreatHigh
	}
}

func failClosed(reason string) *models.ValidationResult {
	return &models.ValidationResult{
		IsValid:         false,
		SafetyScore:     0,
		ThreatLevel:     models.ThreatHigh,
		Recommendations: []string{reason},
	}
}

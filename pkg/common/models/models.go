package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Training job lifecycle
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Node lifecycle
const (
	NodeStatusActive   = "active"
	NodeStatusTraining = "training"
	NodeStatusSyncing  = "syncing"
	NodeStatusOffline  = "offline"
)

// Threat levels and alert severities share the same buckets.
const (
	ThreatLow    = "LOW"
	ThreatMedium = "MEDIUM"
	ThreatHigh   = "HIGH"

	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// SimulationScenario is a synthetic market-stress vector. All four components
// are clamped to [0,1].
type SimulationScenario struct {
	LiquidityShock     float64 `json:"liquidity_shock"`
	GasPriceSpike      float64 `json:"gas_price_spike"`
	CompetitorActivity float64 `json:"competitor_activity"`
	MarketVolatility   float64 `json:"market_volatility"`
}

// Vector returns the scenario as a feature vector for the model backends.
func (s SimulationScenario) Vector() []float64 {
	return []float64{s.LiquidityShock, s.GasPriceSpike, s.CompetitorActivity, s.MarketVolatility}
}

type TrainingMetrics struct {
	Loss               float64 `json:"loss"`
	Accuracy           float64 `json:"accuracy"`
	EpochsCompleted    int     `json:"epochs_completed"`
	QuantumSafetyScore float64 `json:"quantum_safety_score"`
	GradientNorm       float64 `json:"gradient_norm"`
	ValidationLoss     float64 `json:"validation_loss"`
}

type TrainingJob struct {
	ID                 string               `json:"id"`
	Scenarios          []SimulationScenario `json:"scenarios"`
	TargetModelVersion string               `json:"target_model_version"`
	Status             string               `json:"status"`
	AssignedNode       string               `json:"assigned_node,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	StartedAt          *time.Time           `json:"started_at,omitempty"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	Metrics            *TrainingMetrics     `json:"metrics,omitempty"`
	ErrorMessage       string               `json:"error_message,omitempty"`
}

type NodeCapacity struct {
	MaxBatchSize int     `json:"max_batch_size"`
	MemoryGB     float64 `json:"memory_gb"`
	CurrentLoad  float64 `json:"current_load"`
}

// NodeDescriptor is the orchestrator's view of one regional training node.
// Priority breaks ties during leader election (lower wins).
type NodeDescriptor struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Endpoint      string       `json:"endpoint"`
	Status        string       `json:"status"`
	Priority      int          `json:"priority"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	Capacity      NodeCapacity `json:"capacity"`
}

// ModelCheckpoint is a signed snapshot of the generator pair. Weights is an
// opaque blob owned by the model backend.
type ModelCheckpoint struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Weights   []byte          `json:"weights"`
	Metrics   TrainingMetrics `json:"metrics"`
	Signature string          `json:"signature"`
}

// ObservedTransaction is the raw upstream input mined by the pattern analyzer.
type ObservedTransaction struct {
	Hash      string          `json:"hash"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Data      string          `json:"data"`
	GasPrice  decimal.Decimal `json:"gas_price"`
	Profit    decimal.Decimal `json:"profit"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

type RoutingPreference struct {
	Chains []int64  `json:"chains"`
	DEXes  []string `json:"dexes"`
}

// CompetitorPattern is a per-address behavioral fingerprint, keyed by
// (chain id, address). Numeric fields carry running moving averages; the
// selector/token maps are set-unions over everything seen so far.
type CompetitorPattern struct {
	Address          string            `json:"address"`
	ChainID          int64             `json:"chain_id"`
	SuccessRate      float64           `json:"success_rate"`
	AvgGasPrice      decimal.Decimal   `json:"avg_gas_price"`
	LastSeen         time.Time         `json:"last_seen"`
	TransactionCount int               `json:"transaction_count"`
	KnownSelectors   map[string]bool   `json:"known_selectors"`
	PreferredTokens  map[string]bool   `json:"preferred_tokens"`
	AvgProfit        decimal.Decimal   `json:"avg_profit"`
	QuantumSafety    float64           `json:"quantum_safety_score"`
	Routing          RoutingPreference `json:"routing_preference"`
	PatternStrength  float64           `json:"pattern_strength"`
	TimeConsistency  float64           `json:"time_consistency"`
}

// TemporalChainEntry is one link of the forward-secure integrity chain.
type TemporalChainEntry struct {
	Hash          string    `json:"hash"`
	Timestamp     time.Time `json:"timestamp"`
	MerkleRoot    string    `json:"merkle_root"`
	EntropySource string    `json:"entropy_source"`
}

type LatticeParams struct {
	Dimension int         `json:"dimension"`
	Basis     [][]float64 `json:"basis"`
	Challenge string      `json:"challenge"`
}

// QuantumSignature keeps the challenge/response protocol shape of a
// lattice-style signature. It is an integrity primitive, not a certified
// post-quantum one.
type QuantumSignature struct {
	Challenge     string        `json:"challenge"`
	Response      string        `json:"response"`
	RecoveryParam string        `json:"recovery_param"`
	Lattice       LatticeParams `json:"lattice"`
}

// ValidationResult is returned by both transaction and model-state
// validation. A failed validation always carries ThreatHigh.
type ValidationResult struct {
	IsValid         bool     `json:"is_valid"`
	SafetyScore     float64  `json:"safety_score"`
	ThreatLevel     string   `json:"threat_level"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type PerformanceAlert struct {
	ID                 string    `json:"id"`
	Message            string    `json:"message"`
	Severity           string    `json:"severity"`
	Metric             string    `json:"metric"`
	Value              float64   `json:"value"`
	Threshold          float64   `json:"threshold"`
	Remediation        string    `json:"remediation"`
	RemediationApplied bool      `json:"remediation_applied"`
	Resolved           bool      `json:"resolved"`
	CreatedAt          time.Time `json:"created_at"`
}

// Event is the Kafka envelope shared by all audit topics.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// MitigationPlan is the downstream hint handed to the execution engine.
// Execution itself happens outside this core.
type MitigationPlan struct {
	Scenario        SimulationScenario         `json:"scenario"`
	Tokens          []string                   `json:"tokens"`
	LiquidityDepth  map[string]decimal.Decimal `json:"liquidity_depth"`
	AlternateRoutes [][]string                 `json:"alternate_routes"`
	PreparedAt      time.Time                  `json:"prepared_at"`
}

// Node HTTP wire types
type HealthReport struct {
	Load   float64 `json:"load"`
	Memory float64 `json:"memory"`
	Status string  `json:"status"`
}

type ModelSyncRequest struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

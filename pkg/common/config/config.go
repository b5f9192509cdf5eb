package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Redis (shared job/node store)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Postgres (alert + checkpoint audit persistence)
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// Orchestrator
	RegionsConfigPath   string
	HealthCheckInterval time.Duration
	ModelSyncInterval   time.Duration
	NodeRequestTimeout  time.Duration
	NodeLoadCeiling     float64

	// Training node
	NodeID             string
	ValidationSplit    float64
	CheckpointInterval int
	CheckpointRetain   int
	MaxGradientNorm    float64
	ArtifactDir        string

	// Integrity validator
	SigningScheme       string
	SigningKey          string
	LatticeMinDimension int
	MinSafetyScore      float64
	ChallengeWindow     time.Duration
	TemporalWindow      time.Duration
	MerkleTreeHeight    int
	MerkleCacheSize     int
	ParallelChunkSize   int

	// Competitor analyzer
	MinPatternTransactions int
	MaxTrackingAge         time.Duration
	BaselineGasGwei        float64
}

// RegionConfig describes one training region, loaded from the YAML topology
// file. Priority breaks ties during leader election (lower wins).
type RegionConfig struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Endpoint     string  `yaml:"endpoint"`
	Priority     int     `yaml:"priority"`
	MaxBatchSize int     `yaml:"max_batch_size"`
	MemoryGB     float64 `yaml:"memory_gb"`
}

type RegionsFile struct {
	Regions []RegionConfig `yaml:"regions"`
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "arbitragex"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "arbitragex123"),
		PostgresDB:       getEnv("POSTGRES_DB", "arbitragex"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "arbitragex-training"),

		RegionsConfigPath:   getEnv("REGIONS_CONFIG", "configs/regions.yaml"),
		HealthCheckInterval: getDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		ModelSyncInterval:   getDuration("MODEL_SYNC_INTERVAL", 60*time.Second),
		NodeRequestTimeout:  getDuration("NODE_REQUEST_TIMEOUT", 30*time.Second),
		NodeLoadCeiling:     getFloatEnv("NODE_LOAD_CEILING", 0.8),

		NodeID:             getEnv("NODE_ID", ""),
		ValidationSplit:    getFloatEnv("VALIDATION_SPLIT", 0.2),
		CheckpointInterval: getIntEnv("CHECKPOINT_INTERVAL", 10),
		CheckpointRetain:   getIntEnv("CHECKPOINT_RETAIN", 5),
		MaxGradientNorm:    getFloatEnv("MAX_GRADIENT_NORM", 10.0),
		ArtifactDir:        getEnv("ARTIFACT_DIR", "artifacts"),

		SigningScheme:       getEnv("SIGNING_SCHEME", "hmac-sha256"),
		SigningKey:          getEnv("SIGNING_KEY", "arbitragex-integrity"),
		LatticeMinDimension: getIntEnv("LATTICE_MIN_DIMENSION", 256),
		MinSafetyScore:      getFloatEnv("MIN_SAFETY_SCORE", 0.8),
		ChallengeWindow:     getDuration("CHALLENGE_WINDOW", 5*time.Minute),
		TemporalWindow:      getDuration("TEMPORAL_WINDOW", 1000*time.Millisecond),
		MerkleTreeHeight:    getIntEnv("MERKLE_TREE_HEIGHT", 10),
		MerkleCacheSize:     getIntEnv("MERKLE_CACHE_SIZE", 1000),
		ParallelChunkSize:   getIntEnv("PARALLEL_CHUNK_SIZE", 64),

		MinPatternTransactions: getIntEnv("MIN_PATTERN_TRANSACTIONS", 5),
		MaxTrackingAge:         getDuration("MAX_TRACKING_AGE", 24*time.Hour),
		BaselineGasGwei:        getFloatEnv("BASELINE_GAS_GWEI", 50),
	}
}

// LoadRegions reads the static region topology used by the orchestrator to
// build its node descriptors.
func LoadRegions(path string) ([]RegionConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions config: %w", err)
	}
	var file RegionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse regions config: %w", err)
	}
	if len(file.Regions) == 0 {
		return nil, fmt.Errorf("regions config %s defines no regions", path)
	}
	return file.Regions, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix  = "training_jobs:"
	nodeKeyPrefix = "nodes:"
	jobIndexKey   = "training_jobs:index"
	nodeIndexKey  = "nodes:index"

	modelVersionKey = "current_model_version"
	primaryNodeKey  = "primary_node"
)

// RedisStore persists jobs and nodes as one hash per key. HSet is atomic per
// key, which is all the coordination the pipeline needs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveJob(ctx context.Context, job models.TrainingJob) error {
	fields, err := jobFields(job)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobKeyPrefix+job.ID, fields)
	pipe.SAdd(ctx, jobIndexKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (models.TrainingJob, error) {
	fields, err := s.client.HGetAll(ctx, jobKeyPrefix+id).Result()
	if err != nil {
		return models.TrainingJob{}, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return models.TrainingJob{}, ErrJobNotFound
	}
	return jobFromFields(fields)
}

func (s *RedisStore) ListJobs(ctx context.Context) ([]models.TrainingJob, error) {
	ids, err := s.client.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]models.TrainingJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err == ErrJobNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *RedisStore) SaveNode(ctx context.Context, node models.NodeDescriptor) error {
	fields, err := nodeFields(node)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, nodeKeyPrefix+node.ID, fields)
	pipe.SAdd(ctx, nodeIndexKey, node.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save node %s: %w", node.ID, err)
	}
	return nil
}

func (s *RedisStore) GetNode(ctx context.Context, id string) (models.NodeDescriptor, error) {
	fields, err := s.client.HGetAll(ctx, nodeKeyPrefix+id).Result()
	if err != nil {
		return models.NodeDescriptor{}, fmt.Errorf("get node %s: %w", id, err)
	}
	if len(fields) == 0 {
		return models.NodeDescriptor{}, ErrNodeNotFound
	}
	return nodeFromFields(fields)
}

func (s *RedisStore) ListNodes(ctx context.Context) ([]models.NodeDescriptor, error) {
	ids, err := s.client.SMembers(ctx, nodeIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	nodes := make([]models.NodeDescriptor, 0, len(ids))
	for _, id := range ids {
		node, err := s.GetNode(ctx, id)
		if err == ErrNodeNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *RedisStore) SetModelVersion(ctx context.Context, version string) error {
	return s.client.Set(ctx, modelVersionKey, version, 0).Err()
}

func (s *RedisStore) GetModelVersion(ctx context.Context) (string, error) {
	version, err := s.client.Get(ctx, modelVersionKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return version, err
}

func (s *RedisStore) SetPrimaryNode(ctx context.Context, nodeID string) error {
	return s.client.Set(ctx, primaryNodeKey, nodeID, 0).Err()
}

func (s *RedisStore) GetPrimaryNode(ctx context.Context) (string, error) {
	nodeID, err := s.client.Get(ctx, primaryNodeKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return nodeID, err
}

func jobFields(job models.TrainingJob) (map[string]interface{}, error) {
	scenarios, err := json.Marshal(job.Scenarios)
	if err != nil {
		return nil, fmt.Errorf("marshal scenarios: %w", err)
	}
	fields := map[string]interface{}{
		"id":                   job.ID,
		"scenarios":            string(scenarios),
		"target_model_version": job.TargetModelVersion,
		"status":               job.Status,
		"assigned_node":        job.AssignedNode,
		"created_at":           job.CreatedAt.Format(time.RFC3339Nano),
		"error_message":        job.ErrorMessage,
	}
	if job.StartedAt != nil {
		fields["started_at"] = job.StartedAt.Format(time.RFC3339Nano)
	}
	if job.CompletedAt != nil {
		fields["completed_at"] = job.CompletedAt.Format(time.RFC3339Nano)
	}
	if job.Metrics != nil {
		metrics, err := json.Marshal(job.Metrics)
		if err != nil {
			return nil, fmt.Errorf("marshal metrics: %w", err)
		}
		fields["metrics"] = string(metrics)
	}
	return fields, nil
}

func jobFromFields(fields map[string]string) (models.TrainingJob, error) {
	job := models.TrainingJob{
		ID:                 fields["id"],
		TargetModelVersion: fields["target_model_version"],
		Status:             fields["status"],
		AssignedNode:       fields["assigned_node"],
		ErrorMessage:       fields["error_message"],
	}
	if raw := fields["scenarios"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Scenarios); err != nil {
			return job, fmt.Errorf("unmarshal scenarios: %w", err)
		}
	}
	if raw := fields["metrics"]; raw != "" {
		job.Metrics = &models.TrainingMetrics{}
		if err := json.Unmarshal([]byte(raw), job.Metrics); err != nil {
			return job, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	job.CreatedAt = parseTime(fields["created_at"])
	if raw := fields["started_at"]; raw != "" {
		t := parseTime(raw)
		job.StartedAt = &t
	}
	if raw := fields["completed_at"]; raw != "" {
		t := parseTime(raw)
		job.CompletedAt = &t
	}
	return job, nil
}

func nodeFields(node models.NodeDescriptor) (map[string]interface{}, error) {
	return map[string]interface{}{
		"id":             node.ID,
		"name":           node.Name,
		"endpoint":       node.Endpoint,
		"status":         node.Status,
		"priority":       strconv.Itoa(node.Priority),
		"last_heartbeat": node.LastHeartbeat.Format(time.RFC3339Nano),
		"max_batch_size": strconv.Itoa(node.Capacity.MaxBatchSize),
		"memory_gb":      strconv.FormatFloat(node.Capacity.MemoryGB, 'f', -1, 64),
		"current_load":   strconv.FormatFloat(node.Capacity.CurrentLoad, 'f', -1, 64),
	}, nil
}

func nodeFromFields(fields map[string]string) (models.NodeDescriptor, error) {
	priority, _ := strconv.Atoi(fields["priority"])
	maxBatch, _ := strconv.Atoi(fields["max_batch_size"])
	memory, _ := strconv.ParseFloat(fields["memory_gb"], 64)
	load, _ := strconv.ParseFloat(fields["current_load"], 64)
	return models.NodeDescriptor{
		ID:            fields["id"],
		Name:          fields["name"],
		Endpoint:      fields["endpoint"],
		Status:        fields["status"],
		Priority:      priority,
		LastHeartbeat: parseTime(fields["last_heartbeat"]),
		Capacity: models.NodeCapacity{
			MaxBatchSize: maxBatch,
			MemoryGB:     memory,
			CurrentLoad:  load,
		},
	}, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

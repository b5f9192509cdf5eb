package store

import (
	"context"
	"sync"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

// MemoryStore is a map-backed Store for local development and tests.
type MemoryStore struct {
	mu           sync.Mutex
	jobs         map[string]models.TrainingJob
	nodes        map[string]models.NodeDescriptor
	modelVersion string
	primaryNode  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[string]models.TrainingJob),
		nodes: make(map[string]models.NodeDescriptor),
	}
}

func (s *MemoryStore) SaveJob(ctx context.Context, job models.TrainingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (models.TrainingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.TrainingJob{}, ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context) ([]models.TrainingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]models.TrainingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *MemoryStore) SaveNode(ctx context.Context, node models.NodeDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = node
	return nil
}

func (s *MemoryStore) GetNode(ctx context.Context, id string) (models.NodeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return models.NodeDescriptor{}, ErrNodeNotFound
	}
	return node, nil
}

func (s *MemoryStore) ListNodes(ctx context.Context) ([]models.NodeDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := make([]models.NodeDescriptor, 0, len(s.nodes))
	for _, node := range s.nodes {
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *MemoryStore) SetModelVersion(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelVersion = version
	return nil
}

func (s *MemoryStore) GetModelVersion(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelVersion, nil
}

func (s *MemoryStore) SetPrimaryNode(ctx context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primaryNode = nodeID
	return nil
}

func (s *MemoryStore) GetPrimaryNode(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primaryNode, nil
}

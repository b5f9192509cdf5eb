// Package store is the shared job/node store: the single source of truth
// crossed by more than one logical actor. Implementations must provide
// atomic per-key updates; nothing here requires relational queries.
package store

import (
	"context"
	"errors"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
)

var (
	ErrJobNotFound  = errors.New("training job not found")
	ErrNodeNotFound = errors.New("node not found")
)

type Store interface {
	SaveJob(ctx context.Context, job models.TrainingJob) error
	GetJob(ctx context.Context, id string) (models.TrainingJob, error)
	ListJobs(ctx context.Context) ([]models.TrainingJob, error)

	SaveNode(ctx context.Context, node models.NodeDescriptor) error
	GetNode(ctx context.Context, id string) (models.NodeDescriptor, error)
	ListNodes(ctx context.Context) ([]models.NodeDescriptor, error)

	SetModelVersion(ctx context.Context, version string) error
	GetModelVersion(ctx context.Context) (string, error)

	SetPrimaryNode(ctx context.Context, nodeID string) error
	GetPrimaryNode(ctx context.Context) (string, error)
}

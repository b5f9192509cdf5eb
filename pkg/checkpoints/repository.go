// Package checkpoints keeps an audit trail of signed model checkpoints,
// consumable by future training runs and integrity audits.
package checkpoints

import (
	"context"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CheckpointModel struct {
	ID        uint              `gorm:"primaryKey;column:id"`
	NodeID    string            `gorm:"column:node_id;index"`
	Version   string            `gorm:"column:version;index"`
	Signature string            `gorm:"column:signature"`
	Weights   []byte            `gorm:"column:weights"`
	Metrics   datatypes.JSONMap `gorm:"column:metrics"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

func (CheckpointModel) TableName() string {
	return "model_checkpoints"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&CheckpointModel{})
}

func (r *Repository) RecordCheckpoint(ctx context.Context, nodeID string, checkpoint models.ModelCheckpoint) error {
	model := &CheckpointModel{
		NodeID:    nodeID,
		Version:   checkpoint.Version,
		Signature: checkpoint.Signature,
		Weights:   checkpoint.Weights,
		Metrics: datatypes.JSONMap{
			"loss":                 checkpoint.Metrics.Loss,
			"accuracy":             checkpoint.Metrics.Accuracy,
			"epochs_completed":     checkpoint.Metrics.EpochsCompleted,
			"quantum_safety_score": checkpoint.Metrics.QuantumSafetyScore,
			"gradient_norm":        checkpoint.Metrics.GradientNorm,
			"validation_loss":      checkpoint.Metrics.ValidationLoss,
		},
		CreatedAt: checkpoint.Timestamp,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *Repository) ListByNode(ctx context.Context, nodeID string, limit int) ([]CheckpointModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []CheckpointModel
	result := r.db.WithContext(ctx).Where("node_id = ?", nodeID).Order("created_at desc").Limit(limit).Find(&rows)
	return rows, result.Error
}

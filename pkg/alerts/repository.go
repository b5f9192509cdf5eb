// Package alerts persists the integrity validator's performance alerts and
// mirrors them onto the audit event stream.
package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/kafka"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/logger"
	"github.com/aigangofficial/ArbitrageX-DEX-sub001/pkg/common/models"
	"gorm.io/gorm"
)

var ErrAlertNotFound = errors.New("performance alert not found")

type Repository struct {
	db       *gorm.DB
	producer *kafka.Producer
}

// NewRepository wires alert persistence. The producer is optional; passing
// nil skips event publication.
func NewRepository(db *gorm.DB, producer *kafka.Producer) *Repository {
	return &Repository{db: db, producer: producer}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&AlertModel{})
}

func (r *Repository) PersistAlert(ctx context.Context, alert models.PerformanceAlert) error {
	model := &AlertModel{
		ID:                 alert.ID,
		Message:            alert.Message,
		Severity:           alert.Severity,
		Metric:             alert.Metric,
		Value:              alert.Value,
		Threshold:          alert.Threshold,
		Remediation:        alert.Remediation,
		RemediationApplied: alert.RemediationApplied,
		Resolved:           alert.Resolved,
		CreatedAt:          alert.CreatedAt,
		UpdatedAt:          time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	if r.producer != nil {
		data := map[string]interface{}{
			"alert_id":  alert.ID,
			"metric":    alert.Metric,
			"severity":  alert.Severity,
			"value":     alert.Value,
			"threshold": alert.Threshold,
		}
		if err := r.producer.PublishEvent(ctx, "performance_alert", "integrity-validator", data); err != nil {
			logger.Log.WithError(err).WithField("alert_id", alert.ID).Warn("Failed to publish alert event")
		}
	}
	return nil
}

func (r *Repository) GetActiveAlerts(ctx context.Context) ([]models.PerformanceAlert, error) {
	var rows []AlertModel
	result := r.db.WithContext(ctx).Where("resolved = ?", false).Order("created_at desc").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	alerts := make([]models.PerformanceAlert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, models.PerformanceAlert{
			ID:                 row.ID,
			Message:            row.Message,
			Severity:           row.Severity,
			Metric:             row.Metric,
			Value:              row.Value,
			Threshold:          row.Threshold,
			Remediation:        row.Remediation,
			RemediationApplied: row.RemediationApplied,
			Resolved:           row.Resolved,
			CreatedAt:          row.CreatedAt,
		})
	}
	return alerts, nil
}

func (r *Repository) MarkRemediationApplied(ctx context.Context, alertID string) error {
	return r.update(ctx, alertID, map[string]interface{}{
		"remediation_applied": true,
		"updated_at":          time.Now().UTC(),
	})
}

func (r *Repository) MarkAlertResolved(ctx context.Context, alertID string) error {
	return r.update(ctx, alertID, map[string]interface{}{
		"resolved":   true,
		"updated_at": time.Now().UTC(),
	})
}

func (r *Repository) update(ctx context.Context, alertID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&AlertModel{}).Where("id = ?", alertID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

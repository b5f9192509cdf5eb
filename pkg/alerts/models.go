package alerts

import (
	"time"

	"gorm.io/datatypes"
)

type AlertModel struct {
	ID                 string            `gorm:"type:uuid;primaryKey;column:id"`
	Message            string            `gorm:"column:message"`
	Severity           string            `gorm:"column:severity"`
	Metric             string            `gorm:"column:metric"`
	Value              float64           `gorm:"column:value"`
	Threshold          float64           `gorm:"column:threshold"`
	Remediation        string            `gorm:"column:remediation"`
	RemediationApplied bool              `gorm:"column:remediation_applied"`
	Resolved           bool              `gorm:"column:resolved"`
	Context            datatypes.JSONMap `gorm:"column:context"`
	CreatedAt          time.Time         `gorm:"column:created_at"`
	UpdatedAt          time.Time         `gorm:"column:updated_at"`
}

func (AlertModel) TableName() string {
	return "performance_alerts"
}

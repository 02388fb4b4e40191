package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/pkg/enums"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

// HPPAlert is raised by the alert engine. Only acknowledgement (read,
// dismiss) mutates it.
type HPPAlert struct {
	ID                 uuid.UUID                `gorm:"type:uuid;primaryKey"`
	RecipeID           uuid.UUID                `gorm:"type:uuid;not null;index"`
	SnapshotID         *uuid.UUID               `gorm:"type:uuid"`
	AlertType          enums.HPPAlertType       `gorm:"type:hpp_alert_type;not null"`
	Severity           enums.AlertSeverity      `gorm:"type:alert_severity;not null"`
	Title              string                   `gorm:"type:text;not null"`
	Message            string                   `gorm:"type:text;not null"`
	OldValue           decimal.Decimal          `gorm:"type:numeric(14,4);not null"`
	NewValue           decimal.Decimal          `gorm:"type:numeric(14,4);not null"`
	ChangePercentage   decimal.Decimal          `gorm:"type:numeric(9,4);not null"`
	AffectedComponents types.AffectedComponents `gorm:"type:jsonb"`
	IsRead             bool                     `gorm:"not null;default:false"`
	IsDismissed        bool                     `gorm:"not null;default:false"`
	ReadAt             *time.Time               `gorm:"type:timestamptz"`
	DismissedAt        *time.Time               `gorm:"type:timestamptz"`
	CreatedAt          time.Time                `gorm:"type:timestamptz;not null"`
	UpdatedAt          time.Time                `gorm:"type:timestamptz;not null;autoUpdateTime"`
}

func (HPPAlert) TableName() string {
	return "hpp_alerts"
}

func (a *HPPAlert) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Acknowledged reports whether a user has read or dismissed the alert.
func (a HPPAlert) Acknowledged() bool {
	return a.IsRead || a.IsDismissed
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ActionLog is the audit trail for every balance mutation and game round.
// Old rows are pruned by the maintenance scheduler.
type ActionLog struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64           `gorm:"not null;index" json:"user_id"`
	ActionType string          `gorm:"not null;index" json:"action_type"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"amount"`
	Details    datatypes.JSON  `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
}

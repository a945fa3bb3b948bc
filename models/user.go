package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is the ledger row for a chat-platform user. Balance is the star
// balance every other subsystem (referrals, games, tournament prizes)
// settles against.
type User struct {
	UserID   int64           `gorm:"primaryKey" json:"user_id"`
	Name     string          `gorm:"not null" json:"name"`
	Username string          `gorm:"index" json:"username"`
	Balance  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"balance"`

	// Lifetime referral counter, independent of any tournament standing.
	Refs int64 `gorm:"not null;default:0" json:"refs"`

	// Daily-bonus claim marker; guarded by a CAS update in the ledger.
	LastBonus time.Time `json:"last_bonus"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

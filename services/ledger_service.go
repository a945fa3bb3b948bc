package services

import (
	"encoding/json"
	"fmt"
	"time"

	"star-rewards-system/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyBonusStars is credited once per 24h window per user.
var DailyBonusStars = decimal.RequireFromString("0.2")

// LedgerService owns star balances. Every credit and debit in the system
// goes through ApplyDelta, which is a single storage-level atomic update —
// concurrent deltas from unrelated sources always sum, never overwrite.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// EnsureUser creates the ledger row if absent; an existing row is untouched.
func (s *LedgerService) EnsureUser(userID int64, name, username string) error {
	user := models.User{
		UserID:   userID,
		Name:     name,
		Username: username,
		Balance:  decimal.Zero,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&user).Error
}

// ApplyDelta credits (or debits, for negative amounts) a user's balance.
// The amount is rounded half-up to two fractional digits before it is
// applied. The balance update and the audit log land in one transaction.
func (s *LedgerService) ApplyDelta(userID int64, delta decimal.Decimal, actionType string, details map[string]interface{}) error {
	amount := delta.Round(2)
	return s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("user_id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to apply balance delta: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("no ledger row for user %d", userID)
		}
		return logAction(tx, userID, actionType, amount, details)
	})
}

// Balance returns the current star balance, zero for unknown users.
func (s *LedgerService) Balance(userID int64) (decimal.Decimal, error) {
	var user models.User
	if err := s.DB.Select("balance").First(&user, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// TopUsers returns the richest users, balance descending.
func (s *LedgerService) TopUsers(limit int) ([]models.User, error) {
	var users []models.User
	err := s.DB.Order("balance DESC").Limit(limit).Find(&users).Error
	return users, err
}

// ClaimDailyBonus credits the daily bonus if the last claim is at least 24h
// old. The guard and the credit are one conditional update, so two
// concurrent claims can never both land.
func (s *LedgerService) ClaimDailyBonus(userID int64) (bool, error) {
	now := time.Now()
	granted := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("user_id = ? AND last_bonus <= ?", userID, now.Add(-24*time.Hour)).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", DailyBonusStars),
				"last_bonus": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		granted = true
		return logAction(tx, userID, "daily_bonus", DailyBonusStars, nil)
	})
	return granted, err
}

func logAction(tx *gorm.DB, userID int64, actionType string, amount decimal.Decimal, details map[string]interface{}) error {
	entry := models.ActionLog{
		UserID:     userID,
		ActionType: actionType,
		Amount:     amount,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode action details: %w", err)
		}
		entry.Details = raw
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write action log: %w", err)
	}
	return nil
}

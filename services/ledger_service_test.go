package services

import (
	"encoding/json"
	"testing"
	"time"

	"star-rewards-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)

	require.NoError(t, ledger.EnsureUser(100, "alice", "alice_tg"))
	require.NoError(t, ledger.ApplyDelta(100, decimal.NewFromInt(5), "adjustment", nil))

	// Re-registering must not reset the balance or overwrite the row.
	require.NoError(t, ledger.EnsureUser(100, "someone else", "other"))

	var user models.User
	require.NoError(t, db.First(&user, "user_id = ?", 100).Error)
	assert.Equal(t, "alice", user.Name)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(5)))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestApplyDeltaRoundsAndSums(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	require.NoError(t, ledger.EnsureUser(100, "alice", ""))

	require.NoError(t, ledger.ApplyDelta(100, decimal.RequireFromString("1.005"), "adjustment", nil))
	require.NoError(t, ledger.ApplyDelta(100, decimal.RequireFromString("0.25"), "adjustment", nil))
	require.NoError(t, ledger.ApplyDelta(100, decimal.RequireFromString("-0.50"), "adjustment", nil))

	balance, err := ledger.Balance(100)
	require.NoError(t, err)
	// 1.005 rounds half-up to 1.01 before it is applied.
	assert.True(t, balance.Equal(decimal.RequireFromString("0.76")), "got %s", balance)
}

func TestApplyDeltaUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)

	err := ledger.ApplyDelta(999, decimal.NewFromInt(1), "adjustment", nil)
	require.Error(t, err)

	// The failed delta must not leave a stray audit entry behind.
	var count int64
	require.NoError(t, db.Model(&models.ActionLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBalanceUnknownUserIsZero(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)

	balance, err := ledger.Balance(999)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestClaimDailyBonus(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	require.NoError(t, ledger.EnsureUser(100, "alice", ""))

	granted, err := ledger.ClaimDailyBonus(100)
	require.NoError(t, err)
	assert.True(t, granted)

	balance, err := ledger.Balance(100)
	require.NoError(t, err)
	assert.True(t, balance.Equal(DailyBonusStars))

	// Second claim inside the 24h window is refused without touching the balance.
	granted, err = ledger.ClaimDailyBonus(100)
	require.NoError(t, err)
	assert.False(t, granted)

	balance, err = ledger.Balance(100)
	require.NoError(t, err)
	assert.True(t, balance.Equal(DailyBonusStars))

	// Age the last claim past the window and the bonus is available again.
	require.NoError(t, db.Model(&models.User{}).
		Where("user_id = ?", 100).
		Update("last_bonus", time.Now().Add(-25*time.Hour)).Error)

	granted, err = ledger.ClaimDailyBonus(100)
	require.NoError(t, err)
	assert.True(t, granted)

	balance, err = ledger.Balance(100)
	require.NoError(t, err)
	assert.True(t, balance.Equal(DailyBonusStars.Mul(decimal.NewFromInt(2))))
}

func TestClaimDailyBonusUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)

	granted, err := ledger.ClaimDailyBonus(999)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestTopUsers(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)

	for userID, stars := range map[int64]int64{100: 10, 200: 50, 300: 30} {
		require.NoError(t, ledger.EnsureUser(userID, "u", ""))
		require.NoError(t, ledger.ApplyDelta(userID, decimal.NewFromInt(stars), "adjustment", nil))
	}

	top, err := ledger.TopUsers(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(200), top[0].UserID)
	assert.Equal(t, int64(300), top[1].UserID)
}

func TestActionLogRecordsDetails(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	require.NoError(t, ledger.EnsureUser(100, "alice", ""))

	require.NoError(t, ledger.ApplyDelta(100, decimal.NewFromInt(3), "game_result", map[string]interface{}{
		"game": "dice",
	}))

	var entry models.ActionLog
	require.NoError(t, db.First(&entry, "user_id = ?", 100).Error)
	assert.Equal(t, "game_result", entry.ActionType)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(3)))

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, "dice", details["game"])
}

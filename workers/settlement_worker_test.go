package workers

import (
	"testing"
	"time"

	"star-rewards-system/models"
	"star-rewards-system/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTournament(t *testing.T, db *gorm.DB, start time.Time) *models.Tournament {
	t.Helper()
	tournaments := services.NewTournamentService(db)
	tournament, err := tournaments.Create(services.CreateTournamentParams{
		Name:         "Autumn Cup",
		StartTime:    start,
		DurationDays: 1,
		PrizePlaces:  2,
		Prizes:       models.PrizeTable{"1": "10", "2": "5"},
		TrophyAssets: models.TrophyAssetTable{"1": "gold-cup"},
	})
	require.NoError(t, err)
	return tournament
}

func TestSweepFinishesDueTournamentsAndNotifies(t *testing.T) {
	db := setupTestDB(t)
	ledger := services.NewLedgerService(db)
	standings := services.NewStandingsService(db)
	tournaments := services.NewTournamentService(db)
	notifier := newFakeNotifier()
	worker := NewSettlementWorker(tournaments, notifier)

	tournament := seedTournament(t, db, time.Now().Add(-48*time.Hour))
	require.NoError(t, ledger.EnsureUser(100, "alice", ""))
	require.NoError(t, ledger.EnsureUser(200, "bob", ""))
	require.NoError(t, standings.IncrementScore(tournament.ID, 100))
	require.NoError(t, standings.IncrementScore(tournament.ID, 100))
	require.NoError(t, standings.IncrementScore(tournament.ID, 200))

	worker.sweep()

	var finished models.Tournament
	require.NoError(t, db.First(&finished, "id = ?", tournament.ID).Error)
	assert.Equal(t, models.TournamentStatusFinished, finished.Status)

	balance, err := ledger.Balance(100)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))

	// Place 1 gets the trophy image, place 2 plain text.
	require.Equal(t, 1, notifier.count(100))
	assert.Contains(t, notifier.messages[100][0], "gold-cup|")
	require.Equal(t, 1, notifier.count(200))
	assert.NotContains(t, notifier.messages[200][0], "|")

	// A second sweep finds nothing due and sends nothing new.
	worker.sweep()
	assert.Equal(t, 1, notifier.count(100))
	assert.Equal(t, 1, notifier.count(200))

	balance, err = ledger.Balance(100)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))
}

func TestSweepSkipsRunningTournaments(t *testing.T) {
	db := setupTestDB(t)
	tournaments := services.NewTournamentService(db)
	notifier := newFakeNotifier()
	worker := NewSettlementWorker(tournaments, notifier)

	tournament := seedTournament(t, db, time.Now().Add(-time.Hour))

	worker.sweep()

	var current models.Tournament
	require.NoError(t, db.First(&current, "id = ?", tournament.ID).Error)
	assert.Equal(t, models.TournamentStatusActive, current.Status)
}

func TestSweepNotificationFailureDoesNotBlockOthers(t *testing.T) {
	db := setupTestDB(t)
	ledger := services.NewLedgerService(db)
	standings := services.NewStandingsService(db)
	tournaments := services.NewTournamentService(db)
	notifier := newFakeNotifier()
	notifier.fail[100] = true
	worker := NewSettlementWorker(tournaments, notifier)

	tournament := seedTournament(t, db, time.Now().Add(-48*time.Hour))
	require.NoError(t, ledger.EnsureUser(100, "alice", ""))
	require.NoError(t, ledger.EnsureUser(200, "bob", ""))
	require.NoError(t, standings.IncrementScore(tournament.ID, 100))
	require.NoError(t, standings.IncrementScore(tournament.ID, 100))
	require.NoError(t, standings.IncrementScore(tournament.ID, 200))

	worker.sweep()

	// Delivery to the first winner failed, the second still got theirs and
	// both payouts landed.
	assert.Equal(t, 0, notifier.count(100))
	assert.Equal(t, 1, notifier.count(200))

	balance, err := ledger.Balance(100)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))
}

package workers

import (
	"fmt"
	"sync"
	"testing"

	"star-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open in-memory DB")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.Trophy{},
		&models.ActionLog{},
	), "Failed to migrate schema")

	return db
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages map[int64][]string
	fail     map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		messages: make(map[int64][]string),
		fail:     make(map[int64]bool),
	}
}

func (n *fakeNotifier) Notify(userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[userID] {
		return fmt.Errorf("delivery failed for %d", userID)
	}
	n.messages[userID] = append(n.messages[userID], text)
	return nil
}

func (n *fakeNotifier) NotifyImage(userID int64, assetRef string, caption string) error {
	return n.Notify(userID, assetRef+"|"+caption)
}

func (n *fakeNotifier) count(userID int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages[userID])
}

package workers

import (
	"context"
	"log"
	"time"

	"star-rewards-system/models"
	"star-rewards-system/services"

	"gorm.io/gorm"
)

// StartBroadcastWorker announces tournaments whose start time has just
// elapsed to every known user. The already-notified set lives in process
// memory for the lifetime of the worker: a restart may re-send a start
// message, which is the documented best-effort guarantee — unlike payout,
// which is guarded durably.
type StartBroadcastWorker struct {
	DB       *gorm.DB
	Notifier services.Notifier

	notified map[uint]struct{}
}

func NewStartBroadcastWorker(db *gorm.DB, notifier services.Notifier) *StartBroadcastWorker {
	return &StartBroadcastWorker{
		DB:       db,
		Notifier: notifier,
		notified: make(map[uint]struct{}),
	}
}

// Run polls until the context is cancelled. The look-back window spans two
// polling intervals so a start time cannot slip between ticks.
func (w *StartBroadcastWorker) Run(ctx context.Context, pollInterval time.Duration) {
	log.Printf("Starting tournament start-broadcast loop (every %s)...", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Start-broadcast loop stopped.")
			return
		case <-ticker.C:
			w.tick(time.Now(), 2*pollInterval)
		}
	}
}

func (w *StartBroadcastWorker) tick(now time.Time, lookBack time.Duration) {
	var starting []models.Tournament
	err := w.DB.
		Where("status = ? AND start_message IS NOT NULL AND start_time <= ? AND start_time > ?",
			models.TournamentStatusActive, now, now.Add(-lookBack)).
		Find(&starting).Error
	if err != nil {
		log.Printf("[BROADCAST] DB error finding starting tournaments: %v", err)
		return
	}

	for _, t := range starting {
		if _, done := w.notified[t.ID]; done {
			continue
		}
		if t.StartMessage == nil || *t.StartMessage == "" {
			w.notified[t.ID] = struct{}{}
			continue
		}

		var userIDs []int64
		if err := w.DB.Model(&models.User{}).Pluck("user_id", &userIDs).Error; err != nil {
			// Retry the whole broadcast next tick.
			log.Printf("[BROADCAST] DB error listing users: %v", err)
			continue
		}

		sent := 0
		for _, userID := range userIDs {
			if err := w.Notifier.Notify(userID, *t.StartMessage); err != nil {
				log.Printf("[BROADCAST] Failed to notify user %d: %v", userID, err)
				continue
			}
			sent++
		}

		w.notified[t.ID] = struct{}{}
		log.Printf("[BROADCAST] Sent start message for tournament %d (%s) to %d users", t.ID, t.Name, sent)
	}
}

// services/scheduler.go
package services

import (
	"log"
	"time"

	"star-rewards-system/models"

	"github.com/go-co-op/gocron/v2"
)

const actionLogRetention = 30 * 24 * time.Hour

// StartMaintenanceScheduler prunes old action-log rows in the background.
func (s *LedgerService) StartMaintenanceScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 6 hours: drop audit rows past retention
	_, _ = sched.NewJob(
		gocron.DurationJob(6*time.Hour),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-actionLogRetention)
			res := s.DB.Where("created_at < ?", cutoff).Delete(&models.ActionLog{})
			if res.Error != nil {
				log.Printf("[CLEANUP] DB error: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("[CLEANUP] Pruned %d old action log rows", res.RowsAffected)
			}
		}),
	)
}

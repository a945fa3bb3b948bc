package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"star-rewards-system/services"
)

// SettlementWorker periodically sweeps for tournaments whose window has
// elapsed and drives them through settlement. Finish is idempotent, so an
// overlapping tick or a racing manual end command is harmless — the loser of
// the status flip simply sees no winners.
type SettlementWorker struct {
	Tournaments *services.TournamentService
	Notifier    services.Notifier
}

func NewSettlementWorker(tournaments *services.TournamentService, notifier services.Notifier) *SettlementWorker {
	return &SettlementWorker{Tournaments: tournaments, Notifier: notifier}
}

// Run polls until the context is cancelled. An in-flight sweep finishes its
// current tournament before the loop exits.
func (w *SettlementWorker) Run(ctx context.Context, pollInterval time.Duration) {
	log.Printf("Starting tournament settlement sweep (every %s)...", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Settlement sweep stopped.")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *SettlementWorker) sweep() {
	due, err := w.Tournaments.FindDue(time.Now())
	if err != nil {
		log.Printf("[SETTLEMENT] DB error finding due tournaments: %v", err)
		return
	}

	for _, t := range due {
		winners, err := w.Tournaments.Finish(t.ID)
		if err != nil {
			// Left active; the next tick retries.
			log.Printf("[SETTLEMENT] Failed to finish tournament %d (%s): %v", t.ID, t.Name, err)
			continue
		}
		if len(winners) == 0 {
			continue
		}
		log.Printf("[SETTLEMENT] Tournament %d (%s) finished with %d winners", t.ID, t.Name, len(winners))

		for _, winner := range winners {
			caption := fmt.Sprintf(
				"🎉 Tournament over!\n\nYou took place %d in %s!\n🏆 Your reward: %s⭐️\n\nCheck the \"My trophies\" section 🏅",
				winner.Place, t.Name, winner.Prize.String(),
			)
			var notifyErr error
			if winner.TrophyAsset != "" {
				notifyErr = w.Notifier.NotifyImage(winner.UserID, winner.TrophyAsset, caption)
			} else {
				notifyErr = w.Notifier.Notify(winner.UserID, caption)
			}
			if notifyErr != nil {
				// Payout already committed; delivery is best-effort.
				log.Printf("[SETTLEMENT] Failed to notify winner %d: %v", winner.UserID, notifyErr)
			}
		}
	}
}

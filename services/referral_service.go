package services

import (
	"fmt"
	"log"
	"time"

	"star-rewards-system/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReferralRewardStars is credited to a referrer for each completed referral.
var ReferralRewardStars = decimal.NewFromInt(2)

// ReferralService consumes referral events. The referrer credit, the
// lifetime counter bump and the tournament score increment land in one
// transaction, so a failed delivery can be retried by the event source
// without double-crediting and without ever dropping a score increment.
type ReferralService struct {
	DB          *gorm.DB
	Standings   *StandingsService
	Tournaments *TournamentService
	Notifier    Notifier
}

func NewReferralService(db *gorm.DB, standings *StandingsService, tournaments *TournamentService, notifier Notifier) *ReferralService {
	return &ReferralService{DB: db, Standings: standings, Tournaments: tournaments, Notifier: notifier}
}

// OnReferral processes one (referrer, new user) event. Storage errors are
// returned to the caller for redelivery; the notification is fire-and-forget.
func (s *ReferralService) OnReferral(referrerID int64, referredName string) error {
	tournament, err := s.Tournaments.ActiveInWindow(time.Now())
	if err != nil {
		return fmt.Errorf("failed to look up active tournament: %w", err)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("user_id = ?", referrerID).
			Updates(map[string]interface{}{
				"balance": gorm.Expr("balance + ?", ReferralRewardStars),
				"refs":    gorm.Expr("refs + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("referrer %d has no ledger row", referrerID)
		}
		if err := logAction(tx, referrerID, "referral", ReferralRewardStars, nil); err != nil {
			return err
		}
		if tournament != nil {
			if err := s.Standings.incrementScore(tx, tournament.ID, referrerID); err != nil {
				return fmt.Errorf("failed to increment tournament score: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to process referral for %d: %w", referrerID, err)
	}

	if tournament != nil {
		log.Printf("[REFERRAL] Added 1 point for user %d in tournament %d", referrerID, tournament.ID)
	}

	name := referredName
	if name == "" {
		name = "A new user"
	}
	text := fmt.Sprintf("👥 %s signed up with your link!\n🎉 You earned %s ⭐️", name, ReferralRewardStars.String())
	if err := s.Notifier.Notify(referrerID, text); err != nil {
		log.Printf("[REFERRAL] Failed to notify referrer %d: %v", referrerID, err)
	}
	return nil
}

package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"star-rewards-system/models"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoActiveTournament is returned by FinishByName when no active
// tournament matches the given name or id.
var ErrNoActiveTournament = errors.New("no active tournament matches")

// TournamentService owns the tournament lifecycle: creation, the two
// scheduling predicates (in-window vs due), and settlement. Settlement is
// serialized by an atomic status flip — only the caller that wins the
// active→finished transition pays out.
type TournamentService struct {
	DB *gorm.DB
}

func NewTournamentService(db *gorm.DB) *TournamentService {
	return &TournamentService{DB: db}
}

// CreateTournamentParams carries the fully-validated input from the
// administrative creation workflow.
type CreateTournamentParams struct {
	Name         string
	StartTime    time.Time
	DurationDays int
	PrizePlaces  int
	Prizes       models.PrizeTable
	TrophyAssets models.TrophyAssetTable
	StartMessage *string
}

// Winner is one settled placement, returned so the caller can drive
// notifications. Prize is zero when the rank had no prize-table entry.
type Winner struct {
	UserID      int64           `json:"user_id"`
	Place       int             `json:"place"`
	Score       int64           `json:"score"`
	Prize       decimal.Decimal `json:"prize"`
	TrophyAsset string          `json:"trophy_asset,omitempty"`
}

// Create validates the prize table against prize_places, computes the end
// time and persists the tournament as active. Nothing is stored when
// validation fails.
func (s *TournamentService) Create(params CreateTournamentParams) (*models.Tournament, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, invalidf("name", "must not be empty")
	}
	if params.DurationDays <= 0 {
		return nil, invalidf("duration_days", "must be positive, got %d", params.DurationDays)
	}
	if params.PrizePlaces <= 0 {
		return nil, invalidf("prize_places", "must be positive, got %d", params.PrizePlaces)
	}
	if len(params.Prizes) != params.PrizePlaces {
		return nil, invalidf("prizes", "must have exactly %d entries, got %d", params.PrizePlaces, len(params.Prizes))
	}
	for place := 1; place <= params.PrizePlaces; place++ {
		raw, ok := params.Prizes[strconv.Itoa(place)]
		if !ok {
			return nil, invalidf("prizes", "missing entry for place %d", place)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, invalidf("prizes", "place %d: %q is not a decimal amount", place, raw)
		}
		if amount.IsNegative() {
			return nil, invalidf("prizes", "place %d: amount must not be negative", place)
		}
	}

	assets := params.TrophyAssets
	if assets == nil {
		assets = models.TrophyAssetTable{}
	}

	tournament := &models.Tournament{
		Name:         name,
		Slug:         slug.Make(name),
		StartTime:    params.StartTime,
		EndTime:      params.StartTime.Add(time.Duration(params.DurationDays) * 24 * time.Hour),
		DurationDays: params.DurationDays,
		PrizePlaces:  params.PrizePlaces,
		Prizes:       datatypes.NewJSONType(params.Prizes),
		TrophyAssets: datatypes.NewJSONType(assets),
		Status:       models.TournamentStatusActive,
		StartMessage: params.StartMessage,
	}
	if err := s.DB.Create(tournament).Error; err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, nil
}

// ActiveInWindow returns the tournament eligible for referral credit right
// now: active and inside [start, end). When several overlap the newest id
// wins. Returns nil without error when there is none.
func (s *TournamentService) ActiveInWindow(now time.Time) (*models.Tournament, error) {
	var t models.Tournament
	err := s.DB.
		Where("status = ? AND start_time <= ? AND end_time > ?", models.TournamentStatusActive, now, now).
		Order("id DESC").
		First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindDue returns every tournament the settlement sweep should finish:
// still active, end time elapsed. A tournament appears here until the flip
// to finished lands, after which Finish on it is a no-op.
func (s *TournamentService) FindDue(now time.Time) ([]models.Tournament, error) {
	var due []models.Tournament
	err := s.DB.
		Where("status = ? AND end_time <= ?", models.TournamentStatusActive, now).
		Find(&due).Error
	return due, err
}

// Finish settles a tournament exactly once: flip status active→finished
// atomically, rank the top prize_places participants, and for each rank with
// a prize entry create the trophy and credit the ledger — all inside one
// transaction, so a crash before commit leaves the tournament active and
// unpaid for a clean retry. A missing or already-finished tournament is a
// benign no-op returning no winners.
func (s *TournamentService) Finish(tournamentID uint) ([]Winner, error) {
	var winners []Winner
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.First(&t, "id = ?", tournamentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}

		res := tx.Model(&models.Tournament{}).
			Where("id = ? AND status = ?", tournamentID, models.TournamentStatusActive).
			Update("status", models.TournamentStatusFinished)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent Finish, or already settled.
			return nil
		}

		var standings []models.TournamentParticipant
		if err := tx.
			Where("tournament_id = ?", tournamentID).
			Order("score DESC, user_id ASC").
			Limit(t.PrizePlaces).
			Find(&standings).Error; err != nil {
			return err
		}

		prizes := t.Prizes.Data()
		assets := t.TrophyAssets.Data()
		now := time.Now()

		for i, p := range standings {
			place := i + 1
			winner := Winner{
				UserID: p.UserID,
				Place:  place,
				Score:  p.Score,
				Prize:  decimal.Zero,
			}

			raw, ok := prizes[strconv.Itoa(place)]
			if !ok {
				winners = append(winners, winner)
				continue
			}
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				log.Printf("[SETTLEMENT] Tournament %d place %d has malformed prize %q, skipping payout", tournamentID, place, raw)
				winners = append(winners, winner)
				continue
			}
			amount = amount.Round(2)

			asset := assets[strconv.Itoa(place)]
			if asset == "" {
				asset = assets["default"]
			}

			credit := tx.Model(&models.User{}).
				Where("user_id = ?", p.UserID).
				Update("balance", gorm.Expr("balance + ?", amount))
			if credit.Error != nil {
				return credit.Error
			}
			if credit.RowsAffected == 0 {
				log.Printf("[SETTLEMENT] Winner %d of tournament %d has no ledger row, skipping payout", p.UserID, tournamentID)
				winners = append(winners, winner)
				continue
			}

			trophy := models.Trophy{
				UserID:         p.UserID,
				TournamentID:   tournamentID,
				TournamentName: t.Name,
				Place:          place,
				TrophyAsset:    asset,
				PrizeStars:     amount,
				AwardedAt:      now,
			}
			if err := tx.Create(&trophy).Error; err != nil {
				return err
			}
			if err := logAction(tx, p.UserID, "tournament_prize", amount, map[string]interface{}{
				"tournament_id": tournamentID,
				"place":         place,
			}); err != nil {
				return err
			}

			winner.Prize = amount
			winner.TrophyAsset = asset
			winners = append(winners, winner)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finish tournament %d: %w", tournamentID, err)
	}
	return winners, nil
}

// FinishByName resolves an active tournament by case-insensitive trimmed
// name match or numeric id, newest first, and settles it through the same
// atomic guard as the automatic sweep.
func (s *TournamentService) FinishByName(ref string) (*models.Tournament, []Winner, error) {
	ref = strings.TrimSpace(ref)

	query := s.DB.Where("status = ?", models.TournamentStatusActive)
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		query = query.Where("id = ? OR UPPER(TRIM(name)) = UPPER(?)", id, ref)
	} else {
		query = query.Where("UPPER(TRIM(name)) = UPPER(?)", ref)
	}

	var t models.Tournament
	if err := query.Order("id DESC").First(&t).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrNoActiveTournament
		}
		return nil, nil, err
	}

	winners, err := s.Finish(t.ID)
	if err != nil {
		return nil, nil, err
	}
	return &t, winners, nil
}

// TrophiesForUser returns a user's award history, newest first.
func (s *TournamentService) TrophiesForUser(userID int64) ([]models.Trophy, error) {
	var trophies []models.Trophy
	err := s.DB.
		Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&trophies).Error
	return trophies, err
}

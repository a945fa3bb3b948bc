package services

import (
	"star-rewards-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StandingsService tracks per-tournament referral scores. Both mutations are
// single-statement upserts — never read-then-write — so concurrent referral
// events for the same participant cannot lose increments or reset a score.
type StandingsService struct {
	DB *gorm.DB
}

func NewStandingsService(db *gorm.DB) *StandingsService {
	return &StandingsService{DB: db}
}

// LeaderboardRow is one entry of a tournament leaderboard, joined with the
// user's display data.
type LeaderboardRow struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// StandingPosition is a single user's view of their own standing.
type StandingPosition struct {
	Position int64 `json:"position"`
	Score    int64 `json:"score"`
}

// RegisterParticipant ensures a standings row exists with score 0. Safe
// under concurrent calls for the same key: an existing row is left alone.
func (s *StandingsService) RegisterParticipant(tournamentID uint, userID int64) error {
	return s.registerParticipant(s.DB, tournamentID, userID)
}

func (s *StandingsService) registerParticipant(db *gorm.DB, tournamentID uint, userID int64) error {
	p := models.TournamentParticipant{TournamentID: tournamentID, UserID: userID}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tournament_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&p).Error
}

// IncrementScore bumps a participant's score by one, creating the row with
// score 1 if it does not exist yet, all in one statement.
func (s *StandingsService) IncrementScore(tournamentID uint, userID int64) error {
	return s.incrementScore(s.DB, tournamentID, userID)
}

func (s *StandingsService) incrementScore(db *gorm.DB, tournamentID uint, userID int64) error {
	p := models.TournamentParticipant{TournamentID: tournamentID, UserID: userID, Score: 1}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tournament_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"score": gorm.Expr("tournament_participants.score + 1"),
		}),
	}).Create(&p).Error
}

// Leaderboard returns the top participants, score descending. Ties are
// broken by user id ascending, which keeps the ordering deterministic and
// consistent with the ranking used at settlement.
func (s *StandingsService) Leaderboard(tournamentID uint, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := s.DB.Table("tournament_participants AS tp").
		Select("tp.user_id, u.name, u.username, tp.score").
		Joins("JOIN users u ON u.user_id = tp.user_id").
		Where("tp.tournament_id = ?", tournamentID).
		Order("tp.score DESC, tp.user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// Position computes 1 + the count of participants with a strictly greater
// score. Tied participants therefore report the same position here, while
// final settlement places them on consecutive ranks.
func (s *StandingsService) Position(tournamentID uint, userID int64) (*StandingPosition, error) {
	var score int64
	var p models.TournamentParticipant
	err := s.DB.Where("tournament_id = ? AND user_id = ?", tournamentID, userID).First(&p).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err == nil {
		score = p.Score
	}

	var greater int64
	if err := s.DB.Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND score > ?", tournamentID, score).
		Count(&greater).Error; err != nil {
		return nil, err
	}

	return &StandingPosition{Position: greater + 1, Score: score}, nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Tournament statuses. A tournament only ever moves active → finished.
const (
	TournamentStatusActive   = "active"
	TournamentStatusFinished = "finished"
)

// PrizeTable maps placement rank ("1".."N") to a prize amount expressed as a
// decimal string, so amounts survive JSON round-trips without float drift.
type PrizeTable map[string]string

// TrophyAssetTable maps placement rank to an opaque asset reference.
// The "default" key, when present, is the fallback for ranks without an
// exact entry.
type TrophyAssetTable map[string]string

// Tournament is a time-boxed referral competition. Referrals count toward
// standings only while the tournament is in window (start <= now < end);
// expiry sweeps trigger on status alone.
type Tournament struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Slug         string    `gorm:"index" json:"slug"`
	StartTime    time.Time `gorm:"not null;index" json:"start_time"`
	EndTime      time.Time `gorm:"not null;index" json:"end_time"`
	DurationDays int       `gorm:"not null" json:"duration_days"`
	PrizePlaces  int       `gorm:"not null" json:"prize_places"`

	Prizes       datatypes.JSONType[PrizeTable]       `json:"prizes"`
	TrophyAssets datatypes.JSONType[TrophyAssetTable] `json:"trophy_assets"`

	Status       string  `gorm:"not null;default:'active';index" json:"status"`
	StartMessage *string `json:"start_message,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TournamentParticipant is one user's standing in one tournament.
// Rows are created and bumped exclusively through atomic upserts, so the
// score never loses increments under concurrent referral events.
type TournamentParticipant struct {
	TournamentID uint  `gorm:"primaryKey;autoIncrement:false" json:"tournament_id"`
	UserID       int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Score        int64 `gorm:"not null;default:0" json:"score"`
}

// Trophy is the durable record of a tournament win, distinct from the prize
// credit itself. The tournament name is denormalized because tournaments may
// be purged later. The unique index is the exactly-once settlement guard.
type Trophy struct {
	ID             uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64           `gorm:"not null;index;uniqueIndex:idx_trophies_tournament_user" json:"user_id"`
	TournamentID   uint            `gorm:"not null;uniqueIndex:idx_trophies_tournament_user" json:"tournament_id"`
	TournamentName string          `gorm:"not null" json:"tournament_name"`
	Place          int             `gorm:"not null" json:"place"`
	TrophyAsset    string          `json:"trophy_asset"`
	PrizeStars     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"prize_stars"`
	AwardedAt      time.Time       `gorm:"not null" json:"awarded_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

package services

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stake bounds shared by all mini-games.
var (
	MinStake = decimal.NewFromInt(1)
	MaxStake = decimal.NewFromInt(50)
)

var ErrInsufficientBalance = errors.New("insufficient star balance for this stake")

// Payout multipliers. Dice and rock-paper-scissors pay out the stake plus
// 90% on a win and refund on a draw; slots pay by reel value.
var slotMultipliers = map[int]int64{
	64: 20, // triple seven
	1:  15, // triple bar
	43: 5,  // matching fruit
	22: 5,  // matching fruit
}

// GameService hosts the stateless mini-game reward calculators. Each round
// settles exclusively through the ledger's balance-mutation primitive; the
// games themselves keep no state.
type GameService struct {
	DB     *gorm.DB
	Ledger *LedgerService
}

func NewGameService(db *gorm.DB, ledger *LedgerService) *GameService {
	return &GameService{DB: db, Ledger: ledger}
}

// GameResult describes one settled round.
type GameResult struct {
	Game       string          `json:"game"`
	Outcome    string          `json:"outcome"` // win, loss, draw
	Stake      decimal.Decimal `json:"stake"`
	Payout     decimal.Decimal `json:"payout"`
	PlayerRoll int             `json:"player_roll,omitempty"`
	BotRoll    int             `json:"bot_roll,omitempty"`
	SlotValue  int             `json:"slot_value,omitempty"`
	BotChoice  string          `json:"bot_choice,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
}

// PlayDice rolls a d6 for the player and one for the bot; the higher roll
// wins. Win pays the stake back times 1.9, a draw refunds the stake.
func (s *GameService) PlayDice(userID int64, stake decimal.Decimal) (*GameResult, error) {
	if err := s.takeStake(userID, stake, "dice"); err != nil {
		return nil, err
	}

	result := &GameResult{
		Game:       "dice",
		Stake:      stake,
		PlayerRoll: rand.Intn(6) + 1,
		BotRoll:    rand.Intn(6) + 1,
		Payout:     decimal.Zero,
	}
	switch {
	case result.PlayerRoll > result.BotRoll:
		result.Outcome = "win"
		result.Payout = stake.Mul(decimal.RequireFromString("1.9"))
	case result.PlayerRoll == result.BotRoll:
		result.Outcome = "draw"
		result.Payout = stake
	default:
		result.Outcome = "loss"
	}

	return s.settle(userID, result)
}

// PlaySlots spins a 64-value reel; a handful of values pay multiples of the
// stake, everything else loses it.
func (s *GameService) PlaySlots(userID int64, stake decimal.Decimal) (*GameResult, error) {
	if err := s.takeStake(userID, stake, "slots"); err != nil {
		return nil, err
	}

	result := &GameResult{
		Game:      "slots",
		Stake:     stake,
		SlotValue: rand.Intn(64) + 1,
		Outcome:   "loss",
		Payout:    decimal.Zero,
	}
	if mult, ok := slotMultipliers[result.SlotValue]; ok {
		result.Outcome = "win"
		result.Payout = stake.Mul(decimal.NewFromInt(mult))
	}

	return s.settle(userID, result)
}

var rpsBeats = map[string]string{
	"rock":     "scissors",
	"scissors": "paper",
	"paper":    "rock",
}

// PlayRPS plays rock-paper-scissors against a random bot choice. Win pays
// the stake back times 1.9, a draw refunds the stake.
func (s *GameService) PlayRPS(userID int64, stake decimal.Decimal, choice string) (*GameResult, error) {
	if _, ok := rpsBeats[choice]; !ok {
		return nil, invalidf("choice", "must be rock, paper or scissors, got %q", choice)
	}
	if err := s.takeStake(userID, stake, "rps"); err != nil {
		return nil, err
	}

	choices := []string{"rock", "paper", "scissors"}
	result := &GameResult{
		Game:      "rps",
		Stake:     stake,
		BotChoice: choices[rand.Intn(3)],
		Payout:    decimal.Zero,
	}
	switch {
	case choice == result.BotChoice:
		result.Outcome = "draw"
		result.Payout = stake
	case rpsBeats[choice] == result.BotChoice:
		result.Outcome = "win"
		result.Payout = stake.Mul(decimal.RequireFromString("1.9"))
	default:
		result.Outcome = "loss"
	}

	return s.settle(userID, result)
}

// takeStake validates the stake and debits it from the player's balance.
func (s *GameService) takeStake(userID int64, stake decimal.Decimal, game string) error {
	if stake.LessThan(MinStake) || stake.GreaterThan(MaxStake) {
		return invalidf("stake", "must be between %s and %s stars", MinStake, MaxStake)
	}
	balance, err := s.Ledger.Balance(userID)
	if err != nil {
		return err
	}
	if balance.LessThan(stake) {
		return ErrInsufficientBalance
	}
	return s.Ledger.ApplyDelta(userID, stake.Neg(), "game_bet", map[string]interface{}{"game": game})
}

func (s *GameService) settle(userID int64, result *GameResult) (*GameResult, error) {
	if result.Payout.IsPositive() {
		err := s.Ledger.ApplyDelta(userID, result.Payout, "game_result", map[string]interface{}{
			"game":    result.Game,
			"outcome": result.Outcome,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to settle %s round: %w", result.Game, err)
		}
	}
	balance, err := s.Ledger.Balance(userID)
	if err != nil {
		return nil, err
	}
	result.Payout = result.Payout.Round(2)
	result.Balance = balance
	return result, nil
}

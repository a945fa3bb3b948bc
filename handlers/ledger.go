package handlers

import (
	"errors"
	"strconv"

	"star-rewards-system/middleware"
	"star-rewards-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

func SetupLedgerRoutes(app *fiber.App, ledgerService *services.LedgerService, referralService *services.ReferralService, gameService *services.GameService) {
	// Referral event webhook. Any non-2xx response makes the event source
	// redeliver, so storage failures must surface as errors here.
	app.Post("/referrals", func(c *fiber.Ctx) error {
		var req struct {
			ReferrerID   int64  `json:"referrer_id"`
			ReferredName string `json:"referred_name"`
		}
		if err := c.BodyParser(&req); err != nil || req.ReferrerID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referrer_id is required"})
		}
		if err := referralService.OnReferral(req.ReferrerID, req.ReferredName); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to process referral", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "referral recorded"})
	})

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/users", func(c *fiber.Ctx) error {
		var req struct {
			UserID   int64  `json:"user_id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		}
		if err := c.BodyParser(&req); err != nil || req.UserID == 0 || req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and name are required"})
		}
		if err := ledgerService.EnsureUser(req.UserID, req.Name, req.Username); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create user"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "user ensured"})
	})

	secured.Get("/users/:user_id/balance", func(c *fiber.Ctx) error {
		userID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
		}
		balance, err := ledgerService.Balance(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching balance"})
		}
		return c.JSON(fiber.Map{"user_id": userID, "balance": balance})
	})

	secured.Post("/users/:user_id/daily-bonus", func(c *fiber.Ctx) error {
		userID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
		}
		granted, err := ledgerService.ClaimDailyBonus(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to claim daily bonus"})
		}
		if !granted {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "daily bonus already claimed"})
		}
		return c.JSON(fiber.Map{"message": "daily bonus credited", "amount": services.DailyBonusStars})
	})

	secured.Get("/leaderboard/top", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 10)
		if limit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be positive"})
		}
		users, err := ledgerService.TopUsers(limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching top users"})
		}
		return c.JSON(users)
	})

	secured.Post("/games/:game/play", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(int64)
		var req struct {
			Stake  string `json:"stake"`
			Choice string `json:"choice"` // rock-paper-scissors only
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		stake, err := decimal.NewFromString(req.Stake)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "stake must be a decimal amount"})
		}

		var result *services.GameResult
		switch c.Params("game") {
		case "dice":
			result, err = gameService.PlayDice(userID, stake)
		case "slots":
			result, err = gameService.PlaySlots(userID, stake)
		case "rps":
			result, err = gameService.PlayRPS(userID, stake, req.Choice)
		default:
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown game"})
		}
		if err != nil {
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error()})
			}
			if errors.Is(err, services.ErrInsufficientBalance) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "insufficient balance"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to play round"})
		}
		return c.JSON(result)
	})
}

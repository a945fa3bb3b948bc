package handlers

import (
	"errors"
	"path/filepath"
	"strconv"
	"time"

	"star-rewards-system/middleware"
	"star-rewards-system/models"
	"star-rewards-system/services"
	"star-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultLeaderboardSize = 10

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService, standingsService *services.StandingsService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// 📊 Read paths for users
	secured.Get("/tournaments/active", func(c *fiber.Ctx) error {
		tournament, err := tournamentService.ActiveInWindow(time.Now())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching active tournament"})
		}
		if tournament == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no tournament is currently running"})
		}
		leaderboard, err := standingsService.Leaderboard(tournament.ID, defaultLeaderboardSize)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching leaderboard"})
		}
		return c.JSON(fiber.Map{
			"tournament":  tournament,
			"leaderboard": leaderboard,
		})
	})

	secured.Get("/tournaments/:id/leaderboard", func(c *fiber.Ctx) error {
		tournamentID, err := c.ParamsInt("id")
		if err != nil || tournamentID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id"})
		}
		limit := c.QueryInt("limit", defaultLeaderboardSize)
		if limit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be positive"})
		}
		leaderboard, err := standingsService.Leaderboard(uint(tournamentID), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching leaderboard"})
		}
		return c.JSON(leaderboard)
	})

	secured.Get("/tournaments/:id/position/:user_id", func(c *fiber.Ctx) error {
		tournamentID, err := c.ParamsInt("id")
		if err != nil || tournamentID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tournament id"})
		}
		userID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
		}
		position, err := standingsService.Position(uint(tournamentID), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error computing position"})
		}
		return c.JSON(position)
	})

	secured.Get("/users/:user_id/trophies", func(c *fiber.Ctx) error {
		userID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
		}
		trophies, err := tournamentService.TrophiesForUser(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching trophies"})
		}
		return c.JSON(trophies)
	})

	// 🔒 Admin-only lifecycle operations
	admin := secured.Group("/", middleware.AdminOnly())

	admin.Post("/tournaments", func(c *fiber.Ctx) error {
		var req struct {
			Name         string                  `json:"name"`
			StartTime    time.Time               `json:"start_time"`
			DurationDays int                     `json:"duration_days"`
			PrizePlaces  int                     `json:"prize_places"`
			Prizes       models.PrizeTable       `json:"prizes"`
			TrophyAssets models.TrophyAssetTable `json:"trophy_assets"`
			StartMessage *string                 `json:"start_message"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
		}
		tournament, err := tournamentService.Create(services.CreateTournamentParams{
			Name:         req.Name,
			StartTime:    req.StartTime,
			DurationDays: req.DurationDays,
			PrizePlaces:  req.PrizePlaces,
			Prizes:       req.Prizes,
			TrophyAssets: req.TrophyAssets,
			StartMessage: req.StartMessage,
		})
		if err != nil {
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create tournament"})
		}
		return c.Status(fiber.StatusCreated).JSON(tournament)
	})

	admin.Post("/tournaments/finish", func(c *fiber.Ctx) error {
		var req struct {
			Tournament string `json:"tournament"` // name or numeric id
		}
		if err := c.BodyParser(&req); err != nil || req.Tournament == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tournament name or id is required"})
		}
		tournament, winners, err := tournamentService.FinishByName(req.Tournament)
		if err != nil {
			if errors.Is(err, services.ErrNoActiveTournament) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active tournament with that name"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to finish tournament"})
		}
		return c.JSON(fiber.Map{
			"tournament": tournament,
			"winners":    winners,
		})
	})

	admin.Post("/tournaments/assets", func(c *fiber.Ctx) error {
		asset, err := c.FormFile("asset")
		if err != nil || asset.Size == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset file is required"})
		}
		ext := filepath.Ext(asset.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		key := "trophies/" + uuid.NewString() + ext
		url, err := utils.UploadAssetToR2(asset, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload trophy asset"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"asset_ref": url})
	})
}

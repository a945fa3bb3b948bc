package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"star-rewards-system/handlers"
	"star-rewards-system/middleware"
	"star-rewards-system/models"
	"star-rewards-system/services"
	"star-rewards-system/utils"
	"star-rewards-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	settlementPollInterval = 30 * time.Second
	broadcastPollInterval  = time.Minute
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // trophy asset uploads
	})

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.Trophy{},
		&models.ActionLog{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	notifier := services.NewGatewayNotifier()

	ledgerService := services.NewLedgerService(db)
	standingsService := services.NewStandingsService(db)
	tournamentService := services.NewTournamentService(db)
	referralService := services.NewReferralService(db, standingsService, tournamentService, notifier)
	gameService := services.NewGameService(db, ledgerService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settlementWorker := workers.NewSettlementWorker(tournamentService, notifier)
	go settlementWorker.Run(ctx, settlementPollInterval)

	broadcastWorker := workers.NewStartBroadcastWorker(db, notifier)
	go broadcastWorker.Run(ctx, broadcastPollInterval)

	ledgerService.StartMaintenanceScheduler()

	handlers.SetupTournamentRoutes(app, tournamentService, standingsService)
	handlers.SetupLedgerRoutes(app, ledgerService, referralService, gameService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Printf("✅ Settlement sweep running (every %s)", settlementPollInterval)
	log.Printf("✅ Start-broadcast loop running (every %s)", broadcastPollInterval)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

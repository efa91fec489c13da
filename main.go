package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"arena-battle-system/handlers"
	"arena-battle-system/middleware"
	"arena-battle-system/models"
	"arena-battle-system/services"
	"arena-battle-system/utils"
	"arena-battle-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, enough for achievement icons
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.ArenaSession{},
		&models.ArenaParticipant{},
		&models.Match{},
		&models.MatchParticipant{},
		&models.Achievement{},
		&models.StudentAchievement{},
		&models.RatingSnapshot{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Icon storage is optional; the service runs without it
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not configured, achievement icon uploads disabled: %v", err)
	}

	matchmakingService := services.NewMatchmakingService(db)
	achievementService := services.NewAchievementService(db)
	arenaService := services.NewArenaService(db, matchmakingService, achievementService)
	statsService := services.NewArenaStatsService(db)

	if err := achievementService.SeedCatalog(); err != nil {
		log.Fatal("failed to seed achievement catalog:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional: mirror student profiles from the external profile service
	if profileServiceURL := os.Getenv("PROFILE_SERVICE_URL"); profileServiceURL != "" {
		serviceToken := os.Getenv("ARENA_SERVICE_TOKEN")
		syncWorker := workers.NewStudentSyncWorker(db, profileServiceURL, "/api/v1/public/students", serviceToken)
		syncWorker.Start(ctx)
	} else {
		log.Println("⚠️  PROFILE_SERVICE_URL not set, student profile sync disabled")
	}

	snapshotWorker := workers.NewRatingSnapshotWorker(db, 1*time.Hour)
	snapshotScheduler, err := snapshotWorker.Start()
	if err != nil {
		log.Fatal("failed to start rating snapshot worker:", err)
	}

	handlers.SetupArenaRoutes(app, arenaService, statsService)
	handlers.SetupMatchRoutes(app, arenaService)
	handlers.SetupAchievementRoutes(app, achievementService)
	handlers.SetupStudentRoutes(app, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = snapshotScheduler.Shutdown()
	_ = app.Shutdown()
}

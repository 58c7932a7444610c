package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/tutorium/backend/internal/app/controllers"
	appMigrations "github.com/tutorium/backend/internal/app/migrations"
	appRepos "github.com/tutorium/backend/internal/app/repositories"
	appRoutes "github.com/tutorium/backend/internal/app/routes"
	appServices "github.com/tutorium/backend/internal/app/services"
	"github.com/tutorium/backend/internal/config"
	"github.com/tutorium/backend/internal/db"
	appMiddleware "github.com/tutorium/backend/internal/middleware"
	pkgAuth "github.com/tutorium/backend/internal/pkg/auth"
	"github.com/tutorium/backend/internal/pkg/helpers"
	"github.com/tutorium/backend/internal/pkg/logger"
	"github.com/tutorium/backend/internal/pkg/websocket"
	"github.com/tutorium/backend/internal/scheduling"
	"github.com/tutorium/backend/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	AuthService        appServices.AuthService
	MeetingService     appServices.MeetingService
	ChatService        appServices.ChatService
	NotificationBridge *appServices.NotificationBridge
	AuthController     *appControllers.AuthController
	MeetingController  *appControllers.MeetingController
	ChatController     *appControllers.ChatController
	AuthMiddleware     *appMiddleware.AuthMiddleware
	Repos              *appRepos.Repositories
	JWTService         *pkgAuth.JWTService
	Index              *scheduling.Index
	WSHub              *websocket.Hub
	WSHandler          *websocket.Handler
	MessageHandler     *websocket.MessageHandler
	Logger             zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	// Local development keeps secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	dbPool := database.Pool

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbPool.Ping(ctx); err != nil {
		lgr.Error().Err(err).Msg("Failed to ping database")
		dbPool.Close()
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(dbPool)

	migrationsDir := filepath.Join("internal", "app", "migrations")
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	if err := migrator.MigrateFromDirectory(migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	lgr.Info().Msg("Database migrations successfully applied.")

	if err := seed.CreateDefaultData(context.Background(), dbPool, lgr); err != nil {
		// Seed failures are logged but never block startup
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	return dbPool, nil
}

// BuildDependencies initializes repositories, the availability index, the
// WebSocket hub and every service and controller on top of them.
func BuildDependencies(cfg *config.Config, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(dbPool)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 1*time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 720*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})

	deps.Index = scheduling.NewIndex(cfg.SchedulerLockWait(), lgr)
	deps.WSHub = websocket.NewHub(lgr)
	deps.WSHandler = websocket.NewHandler(deps.WSHub, lgr)
	deps.MessageHandler = websocket.NewMessageHandler(
		deps.Repos.ChatRepository,
		deps.Repos.MessageRepository,
		deps.WSHub,
		lgr,
	)

	deps.AuthService = appServices.NewAuthService(deps.Repos.UserRepository, deps.JWTService, lgr)

	deps.ChatService = appServices.NewChatService(
		deps.Repos.ChatRepository,
		deps.Repos.MessageRepository,
		deps.Repos.UserRepository,
		deps.WSHub,
		lgr,
	)

	deps.NotificationBridge = appServices.NewNotificationBridge(
		deps.ChatService,
		deps.Repos.MessageRepository,
		deps.Repos.CourseRepository,
		deps.WSHub,
		lgr,
	)

	deps.MeetingService = appServices.NewMeetingService(
		deps.Repos.MeetingRepository,
		deps.Repos.UserRepository,
		deps.Repos.RoomRepository,
		deps.Repos.CourseRepository,
		deps.Index,
		deps.NotificationBridge,
		lgr,
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.AuthController = appControllers.NewAuthController(deps.AuthService)
	deps.MeetingController = appControllers.NewMeetingController(deps.MeetingService)
	deps.ChatController = appControllers.NewChatController(deps.ChatService)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.Default()

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.MeetingController,
		deps.ChatController,
		deps.WSHandler,
		deps.AuthMiddleware,
	)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}

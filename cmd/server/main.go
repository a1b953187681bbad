package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jaiguru/astro-remedy/internal/config"
	"github.com/jaiguru/astro-remedy/internal/database"
	"github.com/jaiguru/astro-remedy/internal/handlers"
	"github.com/jaiguru/astro-remedy/internal/logger"
	"github.com/jaiguru/astro-remedy/internal/relay"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/routes"
	"github.com/jaiguru/astro-remedy/internal/services"
	"github.com/jaiguru/astro-remedy/internal/timer"
	"github.com/jaiguru/astro-remedy/internal/utils"
	ws "github.com/jaiguru/astro-remedy/internal/websocket"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty, "astro-remedy")
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Redis fans events out across instances; without it everything stays in process
	var (
		eventRelay   relay.Relay
		ownershipTTL time.Duration
	)
	if cfg.RedisAddr != "" {
		redisRelay, err := relay.NewRedisRelay(ctx, relay.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		eventRelay = redisRelay
		ownershipTTL = 3 * time.Duration(cfg.TimerPersistEvery) * timer.TickInterval
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis event relay")
	} else {
		eventRelay = relay.NewLocalRelay()
		log.Info().Msg("using in-process event relay")
	}
	defer eventRelay.Close()

	// Repositories
	consultationRepo := repositories.NewConsultationRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// Services
	clock := timer.RealClock{}
	hub := ws.NewHub()
	consultationService := services.NewConsultationService(consultationRepo, clock)
	sessionService := services.NewSessionService(consultationService, sessionRepo, eventRelay, clock, services.SessionOptions{
		PersistEvery: cfg.TimerPersistEvery,
		OwnershipTTL: ownershipTTL,
	})
	chatService := services.NewChatService(consultationService, messageRepo, eventRelay)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	surfaceComposer := services.NewSurfaceComposer(services.VideoConfig{
		Domain:     cfg.VideoDomain,
		RoomPrefix: cfg.VideoRoomPrefix,
		BrandName:  cfg.BrandName,
	})
	sweeper := services.NewNoShowSweeper(consultationService, clock, cfg.NoShowGrace, cfg.NoShowSweepInterval)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(db)
	consultationHandler := handlers.NewConsultationHandler(consultationService, sessionService)
	sessionHandler := handlers.NewSessionHandler(consultationService, sessionService, surfaceComposer)
	messageHandler := handlers.NewMessageHandler(chatService)
	webSocketHandler := handlers.NewWebSocketHandler(sessionService, chatService, hub, cfg.CORSOrigins)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterValidators(v); err != nil {
			log.Fatal().Err(err).Msg("failed to register validators")
		}
	}

	if !cfg.LogPretty {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterPublicEndpoints(router, authHandler, healthHandler, webSocketHandler, consultationService, userRepo, cfg.JWTSecret)
	routes.RegisterProtectedEndpoints(router, consultationHandler, sessionHandler, messageHandler, cfg.JWTSecret)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return hub.Run(gctx, eventRelay)
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		hub.CloseAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		return sessionService.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/bracket-engine/config"
	"github.com/Dosada05/bracket-engine/db"
	"github.com/Dosada05/bracket-engine/events"
	"github.com/Dosada05/bracket-engine/handlers"
	"github.com/Dosada05/bracket-engine/repositories"
	api "github.com/Dosada05/bracket-engine/routes"
	"github.com/Dosada05/bracket-engine/services"
	"github.com/Dosada05/bracket-engine/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
)

// logNotifier is the default Notifier: participants get their notification
// through whatever watches the logs or the websocket stream. A real delivery
// channel plugs in behind the same interface.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(ctx context.Context, kind string, payload interface{}) error {
	n.logger.InfoContext(ctx, "notification", slog.String("kind", kind), slog.Any("payload", payload))
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Certificate storage is optional; without R2 credentials placements
	// simply get no documents.
	var certificates services.CertificateService
	if cfg.R2Configured() {
		uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		certificates = storage.NewCertificateStore(uploader)
		logger.Info("certificate store initialized")
	} else {
		logger.Warn("R2 not configured, placement certificates disabled")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(logger)
	go hub.Run(rootCtx)

	bus := events.NewBus(logger)
	defer bus.Close()

	// Repositories.
	txManager := repositories.NewTxManager(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	profileRepo := repositories.NewPostgresGameProfileRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	nodeRepo := repositories.NewPostgresNodeRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	disputeRepo := repositories.NewPostgresDisputeRepository(dbConn)
	resultRepo := repositories.NewPostgresResultRepository(dbConn)
	outboxRepo := repositories.NewPostgresOutboxRepository(dbConn)

	relay := events.NewRelay(outboxRepo, bus, logger, cfg.RelayInterval)
	go relay.Run(rootCtx)

	dispatcher := services.NewDispatcher(logger)
	notifier := &logNotifier{logger: logger}

	payouts := services.PayoutPolicy{
		1: cfg.PrizeCentsFirst,
		2: cfg.PrizeCentsSecond,
		3: cfg.PrizeCentsThird,
	}

	// Services. The wallet collaborator has no in-process implementation;
	// payouts stay disabled until a ledger client is plugged in.
	resultService := services.NewResultService(
		txManager, resultRepo, tournamentRepo, bracketRepo, nodeRepo,
		matchRepo, participantRepo, outboxRepo,
		dispatcher, nil, certificates, notifier, payouts, logger,
	)
	advancementService := services.NewAdvancementService(
		txManager, bracketRepo, nodeRepo, matchRepo, participantRepo,
		tournamentRepo, profileRepo, outboxRepo, resultService, logger,
	)
	matchService := services.NewMatchService(
		txManager, matchRepo, disputeRepo, tournamentRepo, profileRepo,
		outboxRepo, dispatcher, notifier, logger,
	)
	bracketService := services.NewBracketService(
		txManager, tournamentRepo, profileRepo, participantRepo,
		bracketRepo, nodeRepo, matchRepo, outboxRepo,
		dispatcher, notifier, logger,
	)
	tournamentService := services.NewTournamentService(
		txManager, tournamentRepo, profileRepo, participantRepo,
		bracketRepo, matchService, logger,
	)
	logger.Info("services initialized")

	if err := advancementService.Run(rootCtx, bus); err != nil {
		logger.Error("failed to start advancement engine", slog.Any("error", err))
		os.Exit(1)
	}
	if err := events.StartBroadcaster(rootCtx, bus, hub, logger); err != nil {
		logger.Error("failed to start broadcaster", slog.Any("error", err))
		os.Exit(1)
	}

	// Lifecycle sweeps: one cron entry instead of a waiting goroutine per
	// match.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.SweepSchedule, func() {
		ctx, sweepCancel := context.WithTimeout(rootCtx, 30*time.Second)
		defer sweepCancel()

		if n, err := matchService.OpenDueCheckIns(ctx); err != nil {
			logger.Error("check-in sweep failed", slog.Any("error", err))
		} else if n > 0 {
			logger.Info("check-in windows opened", slog.Int("count", n))
		}
		if n, err := matchService.ForfeitExpiredCheckIns(ctx); err != nil {
			logger.Error("forfeit sweep failed", slog.Any("error", err))
		} else if n > 0 {
			logger.Info("expired check-ins forfeited", slog.Int("count", n))
		}
		if n, err := matchService.StartDueMatches(ctx); err != nil {
			logger.Error("auto-start sweep failed", slog.Any("error", err))
		} else if n > 0 {
			logger.Info("matches auto-started", slog.Int("count", n))
		}
	})
	if err != nil {
		logger.Error("invalid sweep schedule", slog.String("schedule", cfg.SweepSchedule), slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("lifecycle sweeps scheduled", slog.String("schedule", cfg.SweepSchedule))

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, bracketService)
	matchHandler := handlers.NewMatchHandler(matchService)
	resultHandler := handlers.NewResultHandler(resultService)
	profileHandler := handlers.NewGameProfileHandler(txManager, profileRepo)
	webSocketHandler := handlers.NewWebSocketHandler(hub)

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.JWTSecretKey,
		tournamentHandler, matchHandler, resultHandler, profileHandler, webSocketHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}

		// Stop the sweeps and the relay, push out whatever the outbox
		// still holds, then let in-flight collaborator calls finish.
		<-scheduler.Stop().Done()
		cancel()
		if err := relay.Drain(shutdownCtx); err != nil {
			logger.Error("failed to drain outbox on shutdown", slog.Any("error", err))
		}
		dispatcher.Wait()
		logger.Info("server stopped gracefully")
	}
}

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

	"github.com/Dosada05/escalation-league/config"
	"github.com/Dosada05/escalation-league/db"
	"github.com/Dosada05/escalation-league/handlers"
	"github.com/Dosada05/escalation-league/middleware"
	"github.com/Dosada05/escalation-league/realtime"
	"github.com/Dosada05/escalation-league/repositories"
	"github.com/Dosada05/escalation-league/routes"
	"github.com/Dosada05/escalation-league/services"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация WebSocket Hub
	wsHub := realtime.NewHub(logger)
	go wsHub.Run()
	logger.Info("websocket hub started")

	// Инициализация репозиториев
	podRepo := repositories.NewPostgresPodRepository(dbConn)
	leagueRepo := repositories.NewPostgresLeagueRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	statsRepo := repositories.NewPostgresStatsRepository(dbConn)
	txRunner := repositories.NewSQLTxRunner(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	statsLedger := services.NewStatsService(leagueRepo, statsRepo, podRepo, logger)
	capResolver := services.NewRoleCapabilityResolver(userRepo)
	podService := services.NewPodService(
		txRunner,
		podRepo,
		leagueRepo,
		userRepo,
		statsLedger,
		capResolver,
		wsHub,
		logger,
	)
	pairingService := services.NewPairingService(podRepo, userRepo)
	logger.Info("services initialized")

	// Планировщик активации заполнившихся открытых подов
	go func() {
		ticker := time.NewTicker(cfg.SchedulerInterval)
		defer ticker.Stop()
		logger.Info("pod activation scheduler started", slog.Duration("interval", cfg.SchedulerInterval))

		// Первый проход сразу при старте, дальше по тикеру.
		if _, err := podService.ActivateReadyPods(context.Background()); err != nil {
			logger.Error("scheduler: initial run failed", slog.Any("error", err))
		}
		for range ticker.C {
			if _, err := podService.ActivateReadyPods(context.Background()); err != nil {
				logger.Error("scheduler: periodic run failed", slog.Any("error", err))
			}
		}
	}()

	// Инициализация обработчиков HTTP
	auth := middleware.NewAuth(cfg.JWTSecretKey)
	podHandler := handlers.NewPodHandler(podService)
	pairingHandler := handlers.NewPairingHandler(pairingService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, leagueRepo, logger)
	logger.Info("http handlers initialized")

	router := routes.SetupRoutes(routes.Deps{
		Auth:              auth,
		Pods:              podHandler,
		Pairing:           pairingHandler,
		WebSocket:         webSocketHandler,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:    cfg.AllowedOrigins,
	})
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
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

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shut down gracefully")
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/movex/dispatch/internal/pkg/config"
	"github.com/movex/dispatch/internal/pkg/database"
	"github.com/movex/dispatch/internal/pkg/health"
	"github.com/movex/dispatch/internal/pkg/logger"
	"github.com/movex/dispatch/internal/pkg/middleware"
	natspkg "github.com/movex/dispatch/internal/pkg/nats"
	nrpkg "github.com/movex/dispatch/internal/pkg/newrelic"
	wspkg "github.com/movex/dispatch/internal/pkg/websocket"
	"github.com/movex/dispatch/services/dispatch/gateway"
	"github.com/movex/dispatch/services/dispatch/handler"
	wsHandler "github.com/movex/dispatch/services/dispatch/handler/websocket"
	"github.com/movex/dispatch/services/dispatch/repository"
	"github.com/movex/dispatch/services/dispatch/usecase"
)

func main() {
	appName := "dispatch-service"
	configPath := os.Getenv("CONFIG_PATH")
	configs := config.InitConfig(configPath)

	nrApp := nrpkg.InitNewRelic(configs)
	if nrApp != nil {
		if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Printf("Warning: New Relic connection timeout: %v", err)
		}
	}

	zapLogger, err := logger.InitZapLoggerFromConfig(configs, nrApp)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()
	logger.SetGlobalLogger(zapLogger)

	zapLogger.Info("Starting application",
		zap.String("app", appName),
		zap.String("version", configs.App.Version),
		zap.String("environment", configs.App.Environment),
	)

	postgresClient, err := database.NewPostgresClient(configs.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer postgresClient.Close()

	redisClient, err := database.NewRedisClient(configs.Redis)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	natsClient, err := natspkg.NewClient(configs.NATS.URL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	// Stores
	rideRepo := repository.NewRideRepository(configs, postgresClient.GetDB())
	driverRepo := repository.NewDriverRepository(configs, redisClient)

	// Gateways
	groupHub := gateway.NewGroupHub(natsClient)
	defer groupHub.Close()
	routeClient := gateway.NewRouteClient(configs)

	// Usecases
	lifecycle := usecase.NewLifecycle(rideRepo, driverRepo)
	matcher := usecase.NewMatcher(configs, driverRepo)
	dispatchUC := usecase.NewDispatchService(configs, lifecycle, matcher, driverRepo, groupHub, routeClient)

	// Session gateway
	manager := wspkg.NewManager(configs.Dispatch)
	sessionHandler := wsHandler.NewSessionHandler(configs, dispatchUC, manager, groupHub)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestIDMiddleware())
	e.Use(middleware.PanicRecoveryMiddleware(zapLogger))
	e.Use(logger.EchoMiddleware(zapLogger))

	health.RegisterHealthEndpoints(e, appName, map[string]health.Probe{
		"postgres": postgresClient.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Client.Ping(ctx).Err()
		},
		"nats": func(ctx context.Context) error {
			if !natsClient.GetConn().IsConnected() {
				return fmt.Errorf("nats connection is %s", natsClient.GetConn().Status())
			}
			return nil
		},
	})
	handler.NewHandler(configs, sessionHandler).RegisterRoutes(e)

	go func() {
		zapLogger.Info("Starting server",
			zap.String("app", appName),
			zap.Int("port", configs.Server.Port),
		)
		if err := e.Start(fmt.Sprintf(":%d", configs.Server.Port)); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down", zap.String("app", appName))

	shutdownTimeout := time.Duration(configs.Server.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	manager.Registry.CloseAll()
	if err := e.Shutdown(ctx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
}

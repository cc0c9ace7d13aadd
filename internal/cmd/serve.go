package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artisan-storefront/internal/api"
	"artisan-storefront/internal/auth"
	"artisan-storefront/internal/blob"
	"artisan-storefront/internal/broker"
	"artisan-storefront/internal/redisclient"
	"artisan-storefront/internal/service"
	"artisan-storefront/internal/store"
	"artisan-storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedOnStart    bool
	migrateOnStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply the database schema before serving")
	serveCmd.Flags().BoolVar(&seedOnStart, "seed", false, "Insert sample data when the catalog is empty")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("env", cfg.Server.Env))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	repo, err := openRepository()
	if err != nil {
		return err
	}
	defer repo.Close()

	if pg, ok := repo.(*store.Store); ok && migrateOnStart {
		if err := pg.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("Schema applied")
	}

	checks := map[string]api.HealthChecker{"database": repo}

	var guard service.CheckoutGuard
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		guard = redisClient
		checks["redis"] = redisClient
	} else {
		logger.Warn("Redis disabled; idempotency keys and checkout lock are off")
	}

	var events service.EventPublisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

		events = broker.NewEventPublisher(producer)
	}

	images := blob.NewStore(cfg.Blob.PublicBaseURL, cfg.Blob.UploadBaseURL, cfg.Blob.UploadSecret, cfg.Blob.UploadTTL)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	services := service.NewServices(repo, images, events, guard, cfg.Business)

	if seedOnStart {
		result, err := services.Catalog.SeedSampleData(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("Seed finished", zap.String("result", result))
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(services, tokens, checks)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/booking"
	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/dashboard"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/treatment"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/outbox"
	"github.com/hms/hms/internal/platform/telemetry"
)

const (
	serviceName    = "hms-server"
	serviceVersion = "0.1.0"

	// adminListLimit bounds the appointment listings on the admin dashboard.
	adminListLimit = 200
)

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Hospital appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(outboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// newRedis connects to REDIS_URL. It returns nil when Redis is not
// configured.
func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis (optional)
	rdb, err := newRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set; rate limits and token revocations are per instance")
	}

	e, err := newServer(cfg, logger, pool, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires the services and handlers onto a new echo instance. rdb
// may be nil.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client) (*echo.Echo, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var revocations auth.RevocationStore
	if rdb != nil {
		revocations = auth.NewRedisRevocationStore(rdb, "hms:revoked")
	} else {
		revocations = auth.NewTokenRevocationStore()
	}
	tokens := auth.NewTokenIssuer(key, cfg.AuthIssuer, cfg.AuthTokenTTL)

	// Services
	tx := db.NewTxRunner(pool)
	events := outbox.NewRepository(pool)

	identitySvc := identity.NewService(identity.NewAccountRepoPG(pool), tokens, revocations)
	catalogSvc := catalog.NewService(tx, catalog.NewDepartmentRepoPG(pool), catalog.NewDoctorRepoPG(pool), identitySvc)
	bookingSvc := booking.NewService(tx, booking.NewSlotRepoPG(pool), booking.NewAppointmentRepoPG(pool), events, booking.Config{
		Location:   loc,
		WindowDays: cfg.BookingWindowDays,
	})
	treatmentSvc := treatment.NewService(treatment.NewRepoPG(pool), bookingSvc)
	dashboardSvc := dashboard.NewService(catalogSvc, bookingSvc, treatmentSvc, identitySvc, adminListLimit)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware. Recovery sits inside the span and the access log
	// so a panic shows up in both.
	e.Use(middleware.RequestID())
	e.Use(telemetry.Middleware(serviceName))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	jwtCfg := auth.JWTConfig{Issuer: tokens, Revocations: revocations, Skipper: auth.AuthSkipper}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": serviceVersion,
		})
	})
	checks := map[string]db.Check{}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if cfg.KafkaBrokers != "" {
		checks["kafka"] = outbox.ReadyCheck(cfg.KafkaBrokers)
	}
	e.GET("/health/db", db.HealthHandler(pool, checks))

	// API
	apiV1 := e.Group("/api/v1")
	if rdb != nil {
		limiter := middleware.NewRedisRateLimiter(rdb, cfg.RateLimitBurst, time.Second, "hms:rl")
		apiV1.Use(limiter.Middleware(logger, true))
	} else {
		rateLimitCfg := middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}
		if rateLimitCfg.RequestsPerSecond <= 0 {
			rateLimitCfg = middleware.DefaultRateLimitConfig()
		}
		apiV1.Use(middleware.RateLimit(rateLimitCfg))
	}

	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)
	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1)
	treatment.NewHandler(treatmentSvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(apiV1)

	return e, nil
}

// Package main initializes and starts the crop tracker HTTP server,
// setting up configuration, logging, database connections, repositories,
// services, external collaborators and handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/agritracker/internal/analysiscache"
	"github.com/atinyakov/agritracker/internal/auth"
	"github.com/atinyakov/agritracker/internal/config"
	"github.com/atinyakov/agritracker/internal/db"
	"github.com/atinyakov/agritracker/internal/gemini"
	"github.com/atinyakov/agritracker/internal/imagefetch"
	"github.com/atinyakov/agritracker/internal/logger"
	"github.com/atinyakov/agritracker/internal/middleware"
	"github.com/atinyakov/agritracker/internal/ratelimit"
	"github.com/atinyakov/agritracker/internal/repository"
	"github.com/atinyakov/agritracker/internal/server/handler/http"
	"github.com/atinyakov/agritracker/internal/service"
	"github.com/atinyakov/agritracker/internal/storage"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(2)
	}
	zapLogger := log.Log

	if err := options.Validate(); err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Purge soft-deleted crops in the background.
	db.StartSoftDeleteCleaner(ctx, postgresDB,
		options.PurgeInterval.Duration,
		options.PurgeRetention.Duration,
		zapLogger,
	)

	// Credentials and tokens.
	hasher, err := auth.NewPasswordHasher(options.HashIterations)
	if err != nil {
		zapLogger.Fatal("invalid hash configuration", zap.Error(err))
	}
	tokens, err := auth.NewTokenService([]byte(options.SecretKey), options.TokenTTL.Duration, nil)
	if err != nil {
		zapLogger.Fatal("invalid token configuration", zap.Error(err))
	}

	// Initialize repositories.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	cropRepo := repository.NewPostgresCropRepository(postgresDB)

	// External collaborators for leaf analysis.
	analysisService := newAnalysisService(ctx, options, zapLogger)

	// Initialize business-logic services.
	authService := service.NewAuthService(authRepo, hasher, tokens, zapLogger)
	cropService := service.NewCropService(cropRepo, time.Now, zapLogger)

	handlers := http.Handlers{
		Auth:    &http.AuthHandler{AuthService: authService, Logger: zapLogger},
		Crops:   &http.CropHandler{CropService: cropService, Logger: zapLogger},
		Analyze: &http.AnalyzeHandler{AnalysisService: analysisService, Logger: zapLogger},
		Health:  &http.HealthHandler{DB: postgresDB, Logger: zapLogger},
	}

	limiter := newLimiter(ctx, options, zapLogger)
	trustedProxies, err := middleware.ParseTrustedProxies(options.TrustedProxies)
	if err != nil {
		zapLogger.Fatal("invalid trusted proxies", zap.Error(err))
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(handlers, http.RouterOptions{
		Tokens:          tokens,
		Limiter:         limiter,
		RateLimit:       options.RateLimit,
		RateLimitWindow: options.RateLimitWindow.Duration,
		CORSOrigins:     options.CORSOrigins,
		TrustedProxies:  trustedProxies,
	}, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	if options.TLSEnabled() {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// newAnalysisService wires the Gemini model, the image fetcher, the optional
// S3 image store and the URL cache.
func newAnalysisService(ctx context.Context, options *config.Options, zapLogger *zap.Logger) *service.AnalysisService {
	var model service.Diagnoser = unavailableModel{}
	if options.GeminiAPIKey != "" {
		client, err := gemini.New(ctx, options.GeminiAPIKey, options.GeminiModel)
		if err != nil {
			zapLogger.Fatal("cannot init gemini client", zap.Error(err))
		}
		model = client
	} else {
		zapLogger.Warn("GEMINI_API_KEY not set, leaf analysis is disabled")
	}

	var store service.ImageStore
	if options.StorageEnabled() {
		s3Store, err := storage.NewS3ImageStore(ctx, storage.Options{
			Bucket:    options.S3Bucket,
			Region:    options.S3Region,
			Endpoint:  options.S3Endpoint,
			AccessKey: options.S3AccessKey,
			SecretKey: options.S3SecretKey,
			PublicURL: options.S3PublicURL,
		})
		if err != nil {
			zapLogger.Fatal("cannot init image storage", zap.Error(err))
		}
		msg, err := s3Store.CreateFolder(ctx, service.ImageFolder)
		if err != nil {
			zapLogger.Warn("cannot create image folder", zap.Error(err))
		} else {
			zapLogger.Info(msg)
		}
		store = s3Store
	}

	var cache service.AnalysisCache
	urlCache, err := analysiscache.New(ctx, analysiscache.DefaultTTL)
	if err != nil {
		zapLogger.Warn("analysis cache disabled", zap.Error(err))
	} else {
		cache = urlCache
	}

	fetcher := imagefetch.New(imagefetch.DefaultTimeout, imagefetch.DefaultMaxBytes)
	return service.NewAnalysisService(model, fetcher, store, cache, zapLogger)
}

// newLimiter prefers the shared Redis limiter and falls back to an
// in-process one.
func newLimiter(ctx context.Context, options *config.Options, zapLogger *zap.Logger) ratelimit.Limiter {
	if options.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(nil, 0)
	}
	redisLimiter, err := ratelimit.NewRedisLimiter(options.RedisAddr, options.RedisPassword, options.RedisDB, nil)
	if err != nil {
		zapLogger.Fatal("cannot init redis limiter", zap.Error(err))
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisLimiter.Ping(pingCtx); err != nil {
		zapLogger.Warn("redis unreachable, requests fail open until it recovers", zap.Error(err))
	}
	return redisLimiter
}

// unavailableModel answers every diagnosis with a dependency error.
type unavailableModel struct{}

func (unavailableModel) Diagnose(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("leaf analysis is not configured")
}

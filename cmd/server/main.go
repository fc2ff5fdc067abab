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

	"github.com/pricelens/backend/config"
	httpDelivery "github.com/pricelens/backend/internal/delivery/http"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/coupang"
	"github.com/pricelens/backend/internal/infrastructure/naver"
	"github.com/pricelens/backend/internal/infrastructure/usage"
	"github.com/pricelens/backend/internal/infrastructure/vision"
	"github.com/pricelens/backend/internal/pkg/logger"
	"github.com/pricelens/backend/internal/usecase"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	log.Info("starting PriceLens backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.String("usageStore", cfg.Usage.Store),
		zap.String("shopping", cfg.Shopping.Provider),
		zap.String("vision", cfg.Vision.DefaultProvider))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is shared by the offer cache and the usage counter
	var rdb *redis.Client
	if cfg.Cache.Type == "redis" || cfg.Usage.Store == "redis" {
		rdb, err = connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("redis unavailable, falling back to memory stores", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// Offer cache
	var offerCache domain.CacheRepository
	if cfg.Cache.Type == "redis" && rdb != nil {
		offerCache = cache.NewRedisCache(rdb, cfg.Redis.KeyPrefix)
	} else {
		memoryCache := cache.NewMemoryCache(cfg.Cache.CleanupInterval)
		defer memoryCache.Close()
		offerCache = memoryCache
	}
	log.Info("offer cache ready", zap.Duration("ttl", cfg.Cache.TTL))

	// Monthly OCR quota
	usageCfg := usage.Config{
		MonthlyLimit:  cfg.Usage.MonthlyLimit,
		WarnThreshold: cfg.Usage.WarnThreshold,
		Location:      cfg.Usage.Location(),
	}
	var tracker domain.UsageTracker
	if cfg.Usage.Store == "redis" && rdb != nil {
		tracker = usage.NewRedisTracker(rdb, usageCfg, usage.DefaultKeyPrefix)
	} else {
		tracker = usage.NewMemoryTracker(usageCfg)
	}

	shopping := newShoppingClient(cfg, log)

	// Vision providers; a missing key leaves that provider unconfigured
	var textRecognizer domain.TextRecognizer
	if cfg.Vision.GoogleAPIKey != "" {
		textRecognizer = vision.NewGoogleClient(vision.GoogleConfig{
			APIKey:  cfg.Vision.GoogleAPIKey,
			BaseURL: cfg.Vision.GoogleBaseURL,
			Timeout: cfg.Vision.Timeout,
		}, log)
	} else {
		log.Warn("google vision not configured")
	}

	var productRecognizer domain.ProductRecognizer
	if cfg.Vision.OpenAIAPIKey != "" {
		productRecognizer = vision.NewOpenAIClient(vision.OpenAIConfig{
			APIKey:  cfg.Vision.OpenAIAPIKey,
			BaseURL: cfg.Vision.OpenAIBaseURL,
			Model:   cfg.Vision.OpenAIModel,
			Timeout: cfg.Vision.Timeout,
		}, log)
	} else {
		log.Warn("openai vision not configured")
	}

	// Initialize usecase layer
	scanService := usecase.NewScanService(
		productRecognizer,
		textRecognizer,
		tracker,
		usecase.ScanServiceConfig{DefaultProvider: cfg.Vision.DefaultProvider},
		log,
	)

	compareService := usecase.NewCompareService(
		offerCache,
		shopping,
		usecase.CompareServiceConfig{
			CacheTTL:               cfg.Cache.TTL,
			MinConfidenceThreshold: cfg.Matching.MinConfidenceThreshold,
			EnableFuzzyMatching:    cfg.Matching.EnableFuzzyMatching,
			FuzzyEditDistance:      cfg.Matching.FuzzyEditDistance,
			Concurrency:            cfg.Compare.Concurrency,
			MaxBatchSize:           cfg.Compare.MaxBatchSize,
			MartLabel:              cfg.Compare.MartLabel,
			OnlineLabel:            cfg.Compare.OnlineLabel,
		},
		log,
	)

	sessions, err := httpDelivery.NewSessionManager(httpDelivery.SessionConfig{
		Password: cfg.Auth.Password,
		Secret:   cfg.Auth.SessionSecret,
		TTL:      cfg.Auth.SessionTTL,
		Secure:   cfg.Server.Environment == "production",
	})
	if err != nil {
		log.Fatal("failed to create session manager", zap.Error(err))
	}
	if sessions == nil {
		log.Warn("no access password set, API is open")
	}

	handler := httpDelivery.NewHandler(scanService, compareService, sessions, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server run failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
}

// connectRedis parses a redis:// URL and checks the server answers
func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func newShoppingClient(cfg *config.Config, log *zap.Logger) domain.ShoppingClient {
	if cfg.Shopping.Provider == "coupang" {
		log.Info("shopping provider: coupang", zap.String("baseURL", cfg.Shopping.CoupangBaseURL))
		return coupang.NewClient(coupang.Config{
			BaseURL:    cfg.Shopping.CoupangBaseURL,
			MaxResults: cfg.Shopping.CoupangMaxResults,
			RateLimit:  cfg.RateLimit.Coupang,
			Timeout:    cfg.Shopping.Timeout,
		}, log)
	}

	client := naver.NewClient(naver.Config{
		ClientID:     cfg.Shopping.NaverClientID,
		ClientSecret: cfg.Shopping.NaverClientSecret,
		BaseURL:      cfg.Shopping.NaverBaseURL,
		Display:      cfg.Shopping.NaverDisplay,
		Sort:         cfg.Shopping.NaverSort,
		RateLimit:    cfg.RateLimit.Naver,
		Timeout:      cfg.Shopping.Timeout,
	}, log)

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		client.SetDebug(true)
		log.Info("naver client debug mode enabled")
	}
	return client
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayushsetu/platform/pkg/abdm"
	"github.com/ayushsetu/platform/pkg/audit"
	"github.com/ayushsetu/platform/pkg/binding"
	"github.com/ayushsetu/platform/pkg/bridge"
	"github.com/ayushsetu/platform/pkg/common/config"
	"github.com/ayushsetu/platform/pkg/common/database"
	"github.com/ayushsetu/platform/pkg/common/kafka"
	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/conceptmap"
	"github.com/ayushsetu/platform/pkg/fallback"
	"github.com/ayushsetu/platform/pkg/gateway/middleware"
	"github.com/ayushsetu/platform/pkg/nlp"
	"github.com/ayushsetu/platform/pkg/resolver"
	"github.com/ayushsetu/platform/pkg/terminology"
	"github.com/ayushsetu/platform/pkg/who"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	catalog, err := terminology.Load(cfg.TerminologyManifest, cfg.DataDir)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load NAMC terminology")
	}
	logger.Log.WithField("concepts", catalog.Len()).Info("NAMC terminology loaded")

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	redisClient := database.GetRedis()

	maps, err := conceptmap.LoadFile(cfg.ConceptMapFile)
	if err != nil {
		logger.Log.WithError(err).Warn("concept map file unavailable, loading from database")
		repo := conceptmap.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate concept map tables")
		}
		maps, err = repo.LoadAll(context.Background())
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to load concept map")
		}
	}
	logger.Log.WithField("elements", maps.Len()).Info("Concept map loaded")

	producer := kafka.NewProducer(audit.Topic)
	defer producer.Close()
	auditService := audit.NewService(producer)

	tokens, err := abdm.NewTokenService(
		cfg.ABDMPrivateKeyPath, cfg.ABDMPublicKeyPath,
		cfg.ABDMIssuer, cfg.ABDMAudience, cfg.ABDMTokenTTL,
	)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load ABDM signing keys")
	}

	whoClient := who.NewClient(cfg)
	matcher := fallback.NewMatcher(catalog)
	semanticIndex := fallback.NewSemanticIndex(catalog)
	nlpService := nlp.NewService(semanticIndex, cfg.SemanticResultLimit)

	mapStore := conceptmap.NewCachedStore(maps, redisClient, 15*time.Minute)
	conversionResolver := resolver.New(mapStore, whoClient, matcher,
		cfg.MapLikeScoreThreshold, cfg.FuzzyResultLimit)

	var sessions binding.Store = binding.NewRedisStore(redisClient, time.Hour)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Log.WithError(err).Warn("Redis unavailable, using in-memory session store")
		sessions = binding.NewMemoryStore()
	}
	cancelPing()
	service := bridge.NewService(
		catalog, maps, conversionResolver, sessions,
		nlpService, auditService, whoClient, tokens,
		cfg.SuggestionLimit, cfg.DataDir,
	)
	handler := bridge.NewHandler(service)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/terminology").Subrouter()
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Authenticate(tokens))
	handler.Register(api, protected)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.TerminologyServicePort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Terminology service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start terminology service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down terminology service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Terminology service forced to shutdown")
	}
	logger.Log.Info("Terminology service stopped")
}

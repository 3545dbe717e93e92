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

	"github.com/ayushsetu/platform/pkg/audit"
	"github.com/ayushsetu/platform/pkg/common/config"
	"github.com/ayushsetu/platform/pkg/common/database"
	"github.com/ayushsetu/platform/pkg/common/kafka"
	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/emr"
	"github.com/ayushsetu/platform/pkg/gateway/middleware"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := emr.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate emr tables")
	}

	auditRepo := audit.NewRepository(db)
	if err := auditRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate audit tables")
	}
	consumer := kafka.NewConsumer(audit.Topic, "")
	defer consumer.Close()
	sink := audit.NewSink(consumer, auditRepo)

	sinkCtx, stopSink := context.WithCancel(context.Background())
	defer stopSink()
	go func() {
		if err := sink.Run(sinkCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("Audit sink stopped")
		}
	}()

	service := emr.NewService(repo)
	handler := emr.NewHandler(service)

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

	api := router.PathPrefix("/api/v1/emr").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.EMRServicePort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("EMR service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start emr service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down EMR service...")
	stopSink()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("EMR service forced to shutdown")
	}
	logger.Log.Info("EMR service stopped")
}

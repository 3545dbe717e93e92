package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ayushsetu/platform/pkg/common/config"
	"github.com/ayushsetu/platform/pkg/common/database"
	"github.com/ayushsetu/platform/pkg/common/logger"
	"github.com/ayushsetu/platform/pkg/conceptmap"
	"github.com/ayushsetu/platform/pkg/mapbuilder"
	"github.com/ayushsetu/platform/pkg/terminology"
	"github.com/ayushsetu/platform/pkg/who"
)

func main() {
	logger.Init()
	cfg := config.Load()

	catalog, err := terminology.Load(cfg.TerminologyManifest, cfg.DataDir)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load NAMC terminology")
	}
	logger.Log.WithFields(map[string]interface{}{
		"concepts": catalog.Len(),
		"workers":  cfg.BuilderWorkers,
	}).Info("Starting concept map build")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := mapbuilder.New(catalog, who.NewClient(cfg),
		cfg.BuilderWorkers, cfg.BuilderTargetLimit, cfg.BuilderConceptCap)
	result, err := builder.Build(ctx)
	if err != nil {
		logger.Log.WithError(err).Fatal("concept map build failed")
	}

	if err := mapbuilder.WriteFile(cfg.BuilderOutputFile, result); err != nil {
		logger.Log.WithError(err).Fatal("failed to write concept map")
	}
	logger.Log.WithFields(map[string]interface{}{
		"mapped":  len(result.Elements),
		"skipped": result.Skipped,
		"output":  cfg.BuilderOutputFile,
	}).Info("Concept map written")

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Warn("postgres unavailable, skipping database upsert")
		return
	}
	repo := conceptmap.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate concept map tables")
	}
	if err := repo.UpsertElements(ctx, result.Elements); err != nil {
		logger.Log.WithError(err).Fatal("failed to upsert concept map elements")
	}
	logger.Log.WithField("elements", len(result.Elements)).Info("Concept map persisted")
}

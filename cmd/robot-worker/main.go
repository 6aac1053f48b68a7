package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"journalize_robot_backend/internal/alert"
	"journalize_robot_backend/internal/artifact"
	"journalize_robot_backend/internal/attachments"
	internaldb "journalize_robot_backend/internal/db"
	journalizingrepo "journalize_robot_backend/internal/journalizing/repository"
	"journalize_robot_backend/internal/journalizing/service"
	"journalize_robot_backend/internal/ops"
	"journalize_robot_backend/internal/records/driver"
	recordsrepo "journalize_robot_backend/internal/records/repository"
	"journalize_robot_backend/internal/scheduler"
	"journalize_robot_backend/platform/config"
	"journalize_robot_backend/platform/db"
	"journalize_robot_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting journalize robot worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := internaldb.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	rpaPool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to metadata store", "error", err)
		os.Exit(1)
	}
	defer rpaPool.Close()

	recordsPool, err := db.NewPool(ctx, cfg.RecordsDatabaseURL)
	if err != nil {
		log.Error("failed to connect to records store", "error", err)
		os.Exit(1)
	}
	defer recordsPool.Close()

	repo := journalizingrepo.New(rpaPool)
	checker := recordsrepo.New(recordsPool)
	downloader := attachments.New(cfg.FormsAPIKey, cfg.DownloadInterval, log)
	stager := artifact.New(downloader, log)
	connector := driver.NewHTTPConnector(cfg.DriverBaseURL, cfg.DriverTimeout, log)
	creds := driver.Credentials{Username: cfg.RecordsUsername, Password: cfg.RecordsPassword}

	pipeline := service.NewPipeline(checker, stager, repo, cfg.StagingDir, log)
	runner := service.NewRunner(repo, repo, connector, creds, pipeline, repo, log)
	alerts := alert.New(cfg, log)

	worker, err := scheduler.NewWorker(cfg, runner, alerts, log)
	if err != nil {
		log.Error("failed to build scheduler worker", "error", err)
		os.Exit(1)
	}

	dispatcher, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to build scheduler client", "error", err)
		os.Exit(1)
	}
	defer dispatcher.Close()

	opsServer := ops.New(cfg.Env, rpaPool, recordsPool, repo, dispatcher, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return opsServer.Run(gctx, cfg.HTTPAddr)
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}

	log.Info("worker shut down")
}

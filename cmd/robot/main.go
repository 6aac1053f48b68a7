package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"journalize_robot_backend/internal/alert"
	"journalize_robot_backend/internal/artifact"
	"journalize_robot_backend/internal/attachments"
	journalizingrepo "journalize_robot_backend/internal/journalizing/repository"
	"journalize_robot_backend/internal/journalizing/service"
	"journalize_robot_backend/internal/records/driver"
	recordsrepo "journalize_robot_backend/internal/records/repository"
	"journalize_robot_backend/platform/config"
	"journalize_robot_backend/platform/db"
	"journalize_robot_backend/platform/logger"
)

// processArguments is the JSON argument object supplied by the orchestration
// host.
type processArguments struct {
	WebformID string `json:"webformId"`
}

func main() {
	argsJSON := flag.String("args", "", "orchestrator process arguments as JSON (defaults to ROBOT_PROCESS_ARGS)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	args, err := parseProcessArguments(*argsJSON)
	if err != nil {
		log.Error("invalid process arguments", "error", err)
		os.Exit(1)
	}

	log.Info("starting journalize batch", "webform_id", args.WebformID)

	ctx := context.Background()

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

	if err := runner.Run(ctx, args.WebformID); err != nil {
		log.Error("batch aborted", "webform_id", args.WebformID, "error", err)
		alerts.SendBatchFailure(ctx, args.WebformID, err)
		os.Exit(1)
	}

	log.Info("batch completed", "webform_id", args.WebformID)
}

func parseProcessArguments(argsJSON string) (processArguments, error) {
	if argsJSON == "" {
		argsJSON = os.Getenv("ROBOT_PROCESS_ARGS")
	}
	if argsJSON == "" {
		return processArguments{}, fmt.Errorf("no process arguments supplied")
	}

	var args processArguments
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return processArguments{}, fmt.Errorf("parse process arguments: %w", err)
	}
	if args.WebformID == "" {
		return processArguments{}, fmt.Errorf("process arguments missing webformId")
	}

	return args, nil
}

package scheduler

import (
	"context"
	"fmt"

	"journalize_robot_backend/internal/alert"
	"journalize_robot_backend/internal/journalizing/service"
	"journalize_robot_backend/platform/config"
	"journalize_robot_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes journalize.batch tasks and runs one batch per task. Batches
// are sequential (concurrency 1 unless configured otherwise) because the
// records application exposes a single stateful session.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner *service.Runner
	alerts *alert.Sender
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner *service.Runner, alerts *alert.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		alerts: alerts,
		log:    log,
	}

	mux.HandleFunc(TaskJournalizeBatch, w.handleJournalizeBatch)

	return w, nil
}

func (w *Worker) handleJournalizeBatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJournalizeBatchPayload(task)
	if err != nil {
		return err
	}

	if payload.WebformID == "" {
		w.log.Error("journalize batch task without webformId")
		return nil
	}

	if err := w.runner.Run(ctx, payload.WebformID); err != nil {
		w.alerts.SendBatchFailure(ctx, payload.WebformID, err)
		return err
	}

	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

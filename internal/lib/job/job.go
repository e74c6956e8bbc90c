// Package job runs background work on Asynq, a Redis-backed task queue.
//
// The API enqueues a task per record mutation through Client; the embedded worker
// server processes them.
package job

import (
	"context"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// JobService holds the Asynq client (enqueue) and server (worker execution).
type JobService struct {
	Client *asynq.Client

	server *asynq.Server
	logger *zerolog.Logger

	notifier saleNotifier
	notifyTo string
}

// NewJobService creates a JobService using the Redis address from cfg.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	client := asynq.NewClient(redisOpt)

	// Queue weights: out of 10 workers roughly 6 serve critical, 3 default, 1 low.
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	return &JobService{
		Client: client,
		server: server,
		logger: logger,
	}
}

// Mux routes task types to their handlers.
func (j *JobService) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRecordChanged, j.handleRecordChangedTask)
	return mux
}

// Start starts the worker server. It returns once the workers are running.
func (j *JobService) Start() error {
	j.logger.Info().Msg("Starting background job server")
	return j.server.Start(j.Mux())
}

// Enqueue submits a task.
func (j *JobService) Enqueue(ctx context.Context, task *asynq.Task) error {
	_, err := j.Client.EnqueueContext(ctx, task)
	return err
}

// Stop waits for running tasks and closes the client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	j.server.Shutdown()
	j.Client.Close()
}

// asynqLogger forwards asynq's internal logs to zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func newAsynqLogger(logger *zerolog.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.With().Str("component", "asynq").Logger()}
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug().Msgf("%v", args...) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info().Msgf("%v", args...) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn().Msgf("%v", args...) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error().Msgf("%v", args...) }
func (l *asynqLogger) Fatal(args ...any) { l.logger.Fatal().Msgf("%v", args...) }

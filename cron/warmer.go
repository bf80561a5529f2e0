package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"disambiguator/models"
)

const TypeCacheWarm = "disambiguation:cache_warm"

// CacheWarmPayload names the categories to warm; empty means the ones in the rules document.
type CacheWarmPayload struct {
	Categories []string `json:"categories,omitempty"`
}

// CacheWarmer is the part of the admin service the worker needs.
type CacheWarmer interface {
	WarmCache(ctx context.Context, categories []string) (*models.WarmReport, error)
}

func NewCacheWarmTask(categories []string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(CacheWarmPayload{Categories: categories})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeCacheWarm, b)
	opts := []asynq.Option{asynq.MaxRetry(3), asynq.Timeout(2 * time.Minute)}
	return task, opts, nil
}

// HandleCacheWarmTask refreshes the candidate cache. A malformed payload
// is not retried.
func HandleCacheWarmTask(warmer CacheWarmer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p CacheWarmPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid cache warm payload", zap.Error(err))
			return fmt.Errorf("decode cache warm payload: %v: %w", err, asynq.SkipRetry)
		}

		report, err := warmer.WarmCache(ctx, p.Categories)
		if report != nil {
			logger.Info("candidate cache warmed", zap.Any("warmed", report.Warmed), zap.Any("failed", report.Failed))
		}
		return err
	}
}

// Enqueuer pushes warm tasks onto the queue database.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisClientOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

func (e *Enqueuer) EnqueueWarm(ctx context.Context, categories []string) (string, error) {
	task, opts, err := NewCacheWarmTask(categories)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue cache warm: %w", err)
	}
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// StartCacheWarmWorker runs the asynq worker in background, retrying the
// start with backoff while the queue database is unreachable.
func StartCacheWarmWorker(opt asynq.RedisClientOpt, warmer CacheWarmer, logger *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"default": 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCacheWarm, HandleCacheWarmTask(warmer, logger))

	go func() {
		const maxAttempts = 5
		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Start(mux)
			if err == nil {
				logger.Info("cache warm worker started")
				return
			}
			logger.Warn("cache warm worker failed to start",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
		logger.Error("cache warm worker gave up; warm requests stay queued")
	}()
	return srv
}

// StartScheduler enqueues a warm of the configured categories on cronspec.
func StartScheduler(opt asynq.RedisClientOpt, cronspec string, logger *zap.Logger) (*asynq.Scheduler, error) {
	task, opts, err := NewCacheWarmTask(nil)
	if err != nil {
		return nil, err
	}
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	entryID, err := scheduler.Register(cronspec, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("register cache warm schedule %q: %w", cronspec, err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	logger.Info("cache warm scheduled", zap.String("cron", cronspec), zap.String("entryId", entryID))
	return scheduler, nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"texturelab/internal/adapter/repo"
	"texturelab/internal/infra"
	"texturelab/internal/provider/openai"
	"texturelab/internal/queue"
	"texturelab/internal/storage"
	"texturelab/internal/texture"
	"texturelab/internal/worker"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireWorker(); err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer rdb.Close()

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	provider, err := openai.NewClient(openai.Options{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure openai client")
	}

	textures := texture.NewService(repo.NewTextureRepository(dbpool), store, logger)
	reporter := worker.NewHTTPReporter(cfg.WebhookURL, cfg.WebhookToken, nil)
	fetcher := &http.Client{Timeout: 60 * time.Second}
	processor := worker.NewProcessor(provider, store, textures, reporter, fetcher, logger)

	jobQueue := queue.NewRedisQueue(rdb, cfg.QueueName)

	// Requeue tasks a previous run left mid-flight.
	if n, err := jobQueue.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: recovery failed")
	} else if n > 0 {
		logger.Info().Int("tasks", n).Msg("worker: requeued orphaned tasks")
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker: started")

	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runLoop(ctx, jobQueue, processor, logger)
		}()
	}
	wg.Wait()
	logger.Info().Msg("worker: stopped")
}

func runLoop(ctx context.Context, q *queue.RedisQueue, processor *worker.Processor, logger infra.Logger) {
	for {
		task, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("worker: dequeue failed")
			time.Sleep(2 * time.Second)
			continue
		}

		if err := processor.Process(ctx, task); err != nil {
			logger.Error().Err(err).Str("job_id", task.JobID).Msg("worker: task failed")
		}
		// Ack regardless of outcome: the failure has been reported and
		// redelivery would just repeat the upstream call.
		if err := q.Ack(ctx, task); err != nil {
			logger.Error().Err(err).Str("job_id", task.JobID).Msg("worker: ack failed")
		}
	}
}

func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, error) {
	if cfg.S3Bucket != "" {
		return storage.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.SignedURLExpiry)
	}
	return storage.NewFileStore(cfg.StoragePath)
}

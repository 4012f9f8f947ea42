package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"texturelab/internal/adapter/repo"
	"texturelab/internal/ai"
	"texturelab/internal/http/handlers"
	httpapi "texturelab/internal/http/httpapi"
	"texturelab/internal/infra"
	"texturelab/internal/queue"
	"texturelab/internal/storage"
	"texturelab/internal/texture"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireAPI(); err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	store, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	users := repo.NewUserRepository(dbpool)
	jobs := repo.NewJobRepository(dbpool)
	textures := repo.NewTextureRepository(dbpool)
	jobQueue := queue.NewRedisQueue(rdb, cfg.QueueName)

	aiSvc := ai.NewService(users, jobs, jobQueue, logger)
	textureSvc := texture.NewService(textures, store, logger)

	app := handlers.NewApp(aiSvc, textureSvc, cfg, logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// newObjectStore picks S3 when a bucket is configured, otherwise a local
// directory. The API only needs it for signed download URLs and texture
// deletion, so a missing configuration is tolerated in development.
func newObjectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, error) {
	if cfg.S3Bucket != "" {
		return storage.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.SignedURLExpiry)
	}
	path := cfg.StoragePath
	if path == "" {
		path = "./storage"
		logger.Warn().Str("path", path).Msg("no storage configured, using local directory")
	}
	return storage.NewFileStore(path)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/openmic/micqueue/internal/adapters/http"
	"github.com/openmic/micqueue/internal/app"
	"github.com/openmic/micqueue/internal/config"
	"github.com/openmic/micqueue/internal/notify"
	"github.com/openmic/micqueue/internal/relay"
	"github.com/openmic/micqueue/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	rooms, entries, closeStore, err := buildStores(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer closeStore()

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect notifier")
	}

	roomCoord := app.NewRoomCoordinator(rooms, notifier)
	queueCoord := app.NewQueueCoordinator(entries, rooms, notifier)
	levelRelay := relay.NewAudioLevelRelay(notifier)

	h := router.NewHandler(roomCoord, queueCoord, levelRelay, notifier, cfg)
	r := router.SetupRouter(ctx, cfg, h)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("storage", cfg.Storage).Str("notifier", cfg.Notifier).Msg("micqueue server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func buildStores(cfg *config.Config) (store.RoomStore, store.QueueStore, func(), error) {
	switch cfg.Storage {
	case "postgres":
		db, err := store.NewPostgresDB(cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("closing database")
			}
		}
		return store.NewPostgresRoomStore(db), store.NewPostgresQueueStore(db), closeFn, nil
	default:
		return store.NewMemoryRoomStore(), store.NewMemoryQueueStore(), func() {}, nil
	}
}

func buildNotifier(ctx context.Context, cfg *config.Config) (notify.Notifier, error) {
	switch cfg.Notifier {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
		return notify.NewRedisNotifier(rdb), nil
	default:
		return notify.NewMemoryNotifier(), nil
	}
}

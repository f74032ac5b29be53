package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"
	bolt "go.etcd.io/bbolt"

	"github.com/exitpal/exitpal/internal/api/handlers/message"
	"github.com/exitpal/exitpal/internal/api/handlers/telephony"
	"github.com/exitpal/exitpal/internal/api/handlers/webhook"
	"github.com/exitpal/exitpal/internal/api/router"
	"github.com/exitpal/exitpal/internal/api/server"
	"github.com/exitpal/exitpal/internal/config"
	"github.com/exitpal/exitpal/internal/identity"
	"github.com/exitpal/exitpal/internal/limiter"
	"github.com/exitpal/exitpal/internal/model"
	"github.com/exitpal/exitpal/internal/notifier"
	dispatchmsg "github.com/exitpal/exitpal/internal/rabbitmq/handlers/message"
	"github.com/exitpal/exitpal/internal/rabbitmq/queue"
	msgrepo "github.com/exitpal/exitpal/internal/repository/message"
	"github.com/exitpal/exitpal/internal/scheduler"
	msgsvc "github.com/exitpal/exitpal/internal/service/message"
	"github.com/exitpal/exitpal/internal/worker"
	"github.com/exitpal/exitpal/pkg/twilio"
	"github.com/exitpal/exitpal/pkg/vonage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()

	if err := godotenv.Load(); err != nil {
		zlog.Logger.Info().Msg("no .env file found, relying on environment")
	}

	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.NewDispatchQueue(ch)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create dispatch queue")
	}

	var (
		repo   msgrepo.Repository
		db     *dbpg.DB
		boltDB *bolt.DB
	)

	switch cfg.Storage.Backend {
	case "postgres":
		opts := &dbpg.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}

		slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
		for _, s := range cfg.Database.Slaves {
			slaveDSNs = append(slaveDSNs, s.DSN())
		}

		db, err = dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
		}

		repo = msgrepo.NewPostgresRepository(db)
	case "bolt":
		if err = os.MkdirAll(filepath.Dir(cfg.Storage.BoltPath), 0o755); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to create bolt data directory")
		}

		boltDB, err = bolt.Open(cfg.Storage.BoltPath, 0o600, nil)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to open bolt database")
		}

		repo, err = msgrepo.NewBoltRepository(boltDB)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to init bolt repository")
		}
	case "memory":
		repo = msgrepo.NewMemoryRepository()
	default:
		zlog.Logger.Fatal().Msgf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database)

	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	usage := limiter.NewRedisLimiter(rdb)
	owners := identity.NewStatic(cfg.Limits.PremiumOwners)

	var provider msgsvc.Provider
	switch cfg.Telephony.Provider {
	case "twilio":
		provider = twilio.NewClient(twilio.Config{
			AccountSID:  cfg.Telephony.Twilio.AccountSID,
			AuthToken:   cfg.Telephony.Twilio.AuthToken,
			From:        cfg.Telephony.Twilio.From,
			CallbackURL: cfg.Telephony.CallbackURL,
		})
	case "vonage":
		provider = vonage.NewClient(vonage.Config{
			APIKey:      cfg.Telephony.Vonage.APIKey,
			APISecret:   cfg.Telephony.Vonage.APISecret,
			From:        cfg.Telephony.Vonage.From,
			CallbackURL: cfg.Telephony.CallbackURL,
		})
	default:
		zlog.Logger.Fatal().Msgf("unknown telephony provider: %s", cfg.Telephony.Provider)
	}

	limits := msgsvc.Limits{
		Free:    cfg.Limits.Free,
		Premium: cfg.Limits.Premium,
	}

	// The hub feeds subscribers from the service, and the service broadcasts
	// into the hub, so the fetch closure is bound before the service exists.
	var service *msgsvc.Service
	fetch := func(ctx context.Context, ownerID string) ([]model.ScheduledMessage, error) {
		return service.ListByOwner(ctx, ownerID)
	}

	var changes notifier.Notifier
	switch cfg.Notifier.Strategy {
	case "push":
		hub := notifier.NewHub(fetch)
		changes = hub
		service = msgsvc.NewService(repo, rdb, provider, usage, owners, hub, limits)
	case "poll":
		changes = notifier.NewPoller(fetch, cfg.Notifier.PollInterval)
		service = msgsvc.NewService(repo, rdb, provider, usage, owners, notifier.NopFeed{}, limits)
	default:
		zlog.Logger.Fatal().Msgf("unknown notifier strategy: %s", cfg.Notifier.Strategy)
	}

	msgHandler := message.NewHandler(service, changes, val, cfg)
	telHandler := telephony.NewHandler(service, val)
	hookHandler := webhook.NewHandler(service)
	jobHandler := dispatchmsg.NewHandler(service)

	duePoller := scheduler.NewPoller(
		repo, q,
		cfg.Scheduler.Interval,
		cfg.Scheduler.BatchSize,
		cfg.Scheduler.StaleAfter,
	)
	go duePoller.Run(ctx, cfg.Retry)

	dispatcher := worker.NewDispatcher(q, jobHandler, service)
	go dispatcher.Run(ctx, cfg.Retry, cfg.Workers.Count)

	r := router.New(msgHandler, telHandler, hookHandler)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if db != nil {
		if err := db.Master.Close(); err != nil {
			zlog.Logger.Printf("failed to close master DB: %v", err)
		}

		for i, s := range db.Slaves {
			if err := s.Close(); err != nil {
				zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
			}
		}
	}

	if boltDB != nil {
		if err := boltDB.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close bolt database")
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}

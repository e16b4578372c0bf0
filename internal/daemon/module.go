// Package daemon composes the sync core into a running process: one
// data directory, one live channel, one open conversation session.
package daemon

import (
	"context"

	"github.com/luispaiva/chatsync/internal/api"
	"github.com/luispaiva/chatsync/internal/bus"
	"github.com/luispaiva/chatsync/internal/cache"
	"github.com/luispaiva/chatsync/internal/channel"
	"github.com/luispaiva/chatsync/internal/config"
	"github.com/luispaiva/chatsync/internal/lock"
	"github.com/luispaiva/chatsync/internal/logging"
	"github.com/luispaiva/chatsync/internal/model"
	"github.com/luispaiva/chatsync/internal/outbox"
	"github.com/luispaiva/chatsync/internal/paths"
	"github.com/luispaiva/chatsync/internal/probe"
	"github.com/luispaiva/chatsync/internal/readmark"
	"github.com/luispaiva/chatsync/internal/session"
	"github.com/luispaiva/chatsync/internal/status"
	"github.com/luispaiva/chatsync/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved startup configuration passed to the fx module.
type Params struct {
	ConfigPath     string
	ConversationID string
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAPIClient,
			provideProber,
			provideCache,
			provideOutbox,
			provideCoalescer,
			provideChannel,
			provideSession,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	if err := paths.EnsureDirs(cfg.DataDir); err != nil {
		return nil, err
	}
	return logging.New(paths.LogPath(cfg.DataDir))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := paths.DBPath(cfg.DataDir)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAPIClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.ServerURL, api.StaticToken(cfg.Token), logger)
}

func provideProber(client *api.Client, logger *zap.Logger) *probe.Prober {
	return probe.New(client.Health, logger)
}

func provideCache(db *store.DB, logger *zap.Logger) *cache.Cache {
	return cache.New(db, logger)
}

func provideOutbox(db *store.DB, client *api.Client, prober *probe.Prober, b *bus.Bus, logger *zap.Logger) *outbox.Queue {
	return outbox.NewQueue(db, client, prober, b, logger)
}

func provideChannel(cfg *config.Config, machine *status.Machine, logger *zap.Logger) *channel.Client {
	self := model.Identity{ID: cfg.UserID, Name: cfg.UserName}
	return channel.New(cfg.ChannelURL, self, api.StaticToken(cfg.Token), machine, logger)
}

func provideCoalescer(db *store.DB, client *api.Client, ch *channel.Client, prober *probe.Prober, logger *zap.Logger) *readmark.Coalescer {
	return readmark.New(client, db, ch, prober, logger)
}

func provideSession(p Params, cfg *config.Config, c *cache.Cache, q *outbox.Queue, r *readmark.Coalescer, ch *channel.Client, client *api.Client, prober *probe.Prober, b *bus.Bus, logger *zap.Logger) *session.Session {
	return session.Open(context.Background(), session.Deps{
		ConversationID: p.ConversationID,
		Self:           model.Identity{ID: cfg.UserID, Name: cfg.UserName},
		Cache:          c,
		Outbox:         q,
		Reads:          r,
		Live:           ch,
		Sender:         client,
		Gate:           prober,
		Bus:            b,
		Logger:         logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, s *session.Session, ch *channel.Client, prober *probe.Prober, b *bus.Bus, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	var unsub func()
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// A channel drop often means the backend went away; drop the
			// cached reachability snapshot so the next send re-probes.
			drops, stop := b.Subscribe(bus.KindChannelDropped, 8)
			unsub = stop
			go func() {
				for range drops {
					prober.Invalidate()
				}
			}()

			// Handlers must be in place before the first frame arrives.
			ch.SetHandlers(s.Handlers())
			ch.Start(context.Background())
			logger.Info("daemon started", zap.String("conversation", s.ConversationID()))
			return nil
		},
		OnStop: func(context.Context) error {
			if unsub != nil {
				unsub()
			}
			s.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			if n := b.Dropped(); n > 0 {
				logger.Warn("bus events lost to slow subscribers", zap.Uint64("dropped", n))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

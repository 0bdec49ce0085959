// Package bootstrap assembles an auction session and its persistence and
// event backends from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/playerauction/auction"
	"github.com/cloudx-io/playerauction/config"
	"github.com/cloudx-io/playerauction/events"
	"github.com/cloudx-io/playerauction/persist"
	"github.com/cloudx-io/playerauction/records"
)

// Runtime holds the session and the resources that must be released with it.
type Runtime struct {
	Session *auction.Session
	closers []func()
}

// Close releases backends in reverse order of creation. Dispose the session
// first so its final snapshot is written.
func (d *Runtime) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// Build loads the data files, opens the configured backends and resumes the
// last saved session when one exists.
func Build(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	d := &Runtime{}

	recs, err := records.LoadFiles(ctx, cfg.Data.TeamsFile, cfg.Data.PlayersFile)
	if err != nil {
		return nil, err
	}
	teams, players := recs.Domain()

	minPerPlayer, err := cfg.Auction.MinPerPlayerAmount()
	if err != nil {
		return nil, fmt.Errorf("min per player: %w", err)
	}

	store, err := buildStore(ctx, cfg.Persistence, d)
	if err != nil {
		d.Close()
		return nil, err
	}
	codec, err := buildCodec(cfg.Persistence)
	if err != nil {
		d.Close()
		return nil, err
	}
	repo := persist.NewSnapshotRepository(store, codec, cfg.Persistence.Key)

	var saver auction.Saver = repo
	if cfg.Persistence.Async {
		async := persist.NewAsyncSaver(repo, cfg.Persistence.WriteTimeout)
		d.closers = append(d.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Persistence.WriteTimeout)
			defer cancel()
			if err := async.Close(closeCtx); err != nil {
				log.Error().Err(err).Msg("failed to close snapshot saver")
			}
		})
		saver = async
	}

	publisher, err := buildPublisher(ctx, cfg.Events, d)
	if err != nil {
		d.Close()
		return nil, err
	}

	opts := []auction.Option{
		auction.WithMaxRound(cfg.Auction.MaxRound),
		auction.WithMinPerPlayer(minPerPlayer),
		auction.WithSaver(saver),
		auction.WithSnapshotSource(repo),
		auction.WithPublisher(publisher),
	}
	if cfg.Auction.SessionID != "" {
		opts = append(opts, auction.WithSessionID(cfg.Auction.SessionID))
	}
	session, err := auction.New(teams, players, opts...)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}
	d.Session = session

	resumed := session.LoadSession(ctx)
	log.Info().
		Str("session_id", session.ID()).
		Bool("resumed", resumed).
		Int("round", session.CurrentRound()).
		Str("backend", cfg.Persistence.Backend).
		Msg("auction session ready")
	return d, nil
}

func buildStore(ctx context.Context, cfg config.PersistenceConfig, d *Runtime) (persist.Store, error) {
	var store persist.Store
	switch cfg.Backend {
	case "memory":
		return persist.NewMemoryStore(), nil
	case "file":
		fs, err := persist.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open snapshot dir: %w", err)
		}
		return fs, nil
	case "redis":
		client, err := persist.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis client")
			}
		})
		store = persist.NewRedisStore(client, cfg.RedisPrefix, 0)
	case "postgres":
		pool, err := persist.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		pg := persist.NewPostgresStore(pool, cfg.PostgresTable)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		store = pg
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}

	if cfg.CircuitBreaker {
		store = persist.NewBreakerStore(cfg.Backend, store, persist.DefaultBreakerSettings())
	}
	return store, nil
}

func buildCodec(cfg config.PersistenceConfig) (*persist.Codec, error) {
	if cfg.SigningKeyFile == "" {
		return persist.NewCodec(), nil
	}
	path := cfg.SigningKeyFile
	if !filepath.IsAbs(path) && cfg.Dir != "" {
		path = filepath.Join(cfg.Dir, path)
	}
	km, err := persist.LoadOrCreateKeyManager(path)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	signer, err := km.Signer()
	if err != nil {
		return nil, err
	}
	verifier, err := km.Verifier()
	if err != nil {
		return nil, err
	}
	return persist.NewCodec(persist.WithSigner(signer), persist.WithVerifier(verifier)), nil
}

func buildPublisher(ctx context.Context, cfg config.EventsConfig, d *Runtime) (auction.Publisher, error) {
	switch cfg.Backend {
	case "none":
		return events.NopPublisher{}, nil
	case "log":
		return events.NewLogPublisher(log.Logger), nil
	case "nats":
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		jsCfg.StreamName = cfg.StreamName
		jsCfg.SubjectPrefix = cfg.SubjectPrefix

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		js, err := events.NewJetStreamPublisher(connectCtx, jsCfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() {
			if err := js.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close event publisher")
			}
		})
		return events.Fanout{events.NewLogPublisher(log.Logger), js}, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/internal/config"
	"github.com/MrEthical07/deskauth/internal/logging"
	"github.com/MrEthical07/deskauth/realtime"
	"github.com/MrEthical07/deskauth/store/memory"
	"github.com/MrEthical07/deskauth/store/postgres"
	"github.com/MrEthical07/deskauth/store/redisstore"
	"github.com/redis/go-redis/v9"
)

// backends holds the stores selected by configuration. Attempts live with
// the token backend when that is redis, otherwise with the users.
type backends struct {
	users    deskauth.UserStore
	attempts deskauth.AttemptStore
	tokens   deskauth.TokenStore
	tickets  realtime.TicketDirectory
	closers  []func() error
}

func (b *backends) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// openDB is replaced in tests.
var openDB = postgres.Open

func openBackends(ctx context.Context, cfg *config.Config, log logging.Logger) (*backends, error) {
	b := &backends{}
	var (
		mem *memory.Store
		pg  *postgres.Store
	)

	if cfg.UserBackend == config.BackendMemory || cfg.TokenBackend == config.BackendMemory {
		mem = memory.New()
	}

	if cfg.UserBackend == config.BackendPostgres || cfg.TokenBackend == config.BackendPostgres {
		db, err := openDB(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
			log.Info(ctx, "database migrated")
		}
		pg = postgres.New(db)
	}

	switch cfg.UserBackend {
	case config.BackendPostgres:
		b.users, b.attempts, b.tickets = pg, pg, pg
	default:
		b.users, b.attempts, b.tickets = mem, mem, mem
	}

	switch cfg.TokenBackend {
	case config.BackendPostgres:
		b.tokens = pg
	case config.BackendRedis:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b.closers = append(b.closers, rdb.Close)
		rs := redisstore.New(rdb)
		if err := rs.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.tokens, b.attempts = rs, rs
	default:
		b.tokens = mem
	}

	log.Info(ctx, "stores ready", "users", cfg.UserBackend, "tokens", cfg.TokenBackend)
	return b, nil
}

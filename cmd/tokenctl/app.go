package main

import (
	"fmt"
	"io"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/sqlstore"
)

// app owns the engine and every connection it was built from.
type app struct {
	cfg     *Config
	logger  zerolog.Logger
	engine  *goToken.Engine
	closers []func()
}

func newLogger(cfg LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// newApp connects to the configured backends. With memoryRedis an embedded
// miniredis replaces the configured Redis address.
func newApp(cfg *Config, memoryRedis bool, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: newLogger(cfg.Log, logOut)}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	b := goToken.New().WithConfig(engineCfg).WithLogger(a.logger)

	if memoryRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		cfg.Redis = RedisConfig{Addr: mr.Addr()}
		a.logger.Debug().Str("addr", mr.Addr()).Msg("using in-memory redis")
	}

	switch cfg.Store.Backend {
	case "redis", "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		b = b.WithRedis(client)
	case "sql":
		db, err := sqlstore.Open(cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
		if err := sqlstore.AutoMigrate(db); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b = b.WithRevocationStore(sqlstore.NewRevocationStore(db)).
			WithPrincipalRepository(sqlstore.NewPrincipalRepository(db))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	engine, err := b.Build()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)

	report := engine.SecurityReport()
	a.logger.Debug().
		Str("backend", cfg.Store.Backend).
		Str("alg", report.SigningAlgorithm).
		Bool("fail_open", report.FailOpen).
		Dur("lookup_timeout", report.LookupTimeout).
		Strs("lint", report.LintWarnings).
		Msg("engine ready")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

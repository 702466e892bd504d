package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/storebot/core/config"
	coredatabase "github.com/m3rciful/storebot/core/database"
	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/core/telegram/state"
)

// SessionOptions selects and configures the per-user state store.
type SessionOptions struct {
	// Backend is one of state.BackendRedis, state.BackendPostgres or state.BackendMemory.
	Backend  string
	Redis    coredatabase.RedisConfig
	Postgres coredatabase.Config
}

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config  *coreconfig.Config
	Session SessionOptions

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(coredatabase.Config) error
	ConnectRedis func(coredatabase.RedisConfig) (*redis.Client, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store   state.Store
	Backend string
	// DB is set only for the postgres backend.
	DB *sqlx.DB
}

// Run initializes the logger and opens the session store, applying
// migrations first when the store lives in PostgreSQL.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	backend := strings.ToLower(strings.TrimSpace(opts.Session.Backend))
	if backend == "" {
		backend = state.BackendRedis
	}

	res := &Result{Backend: backend}
	switch backend {
	case state.BackendMemory:
		res.Store = state.NewMemoryStore()
	case state.BackendRedis:
		connect := opts.ConnectRedis
		if connect == nil {
			connect = coredatabase.ConnectRedis
		}
		client, err := connect(opts.Session.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Store = state.NewRedisStore(client, opts.Session.Redis.KeyPrefix)
	case state.BackendPostgres:
		db, err := openPostgres(opts)
		if err != nil {
			return nil, err
		}
		res.DB = db
		res.Store = state.NewSQLStore(db)
	default:
		return nil, fmt.Errorf("%w: unknown session backend %q", coreconfig.ErrConfiguration, opts.Session.Backend)
	}

	logger.Store.Info("session store ready",
		slog.String("event", "store.ready"),
		slog.String("backend", backend),
	)
	return res, nil
}

func openPostgres(opts Options) (*sqlx.DB, error) {
	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Session.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Session.Postgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return db, nil
}

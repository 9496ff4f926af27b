package admin

import (
	"context"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storegate/pkg/authz"
	"storegate/pkg/config"
)

// App is the admin service container: shared deps and startup-time wiring.
// Request-scoped state lives in contexts, never here.
type App struct {
	log         *zap.SugaredLogger
	cfg         config.Config
	db          *pgxpool.Pool
	accounts    AccountProvider
	registry    *Registry
	policy      *authz.Engine
	revocations *RedisRevocations
}

// New assembles the App and performs one-time startup work: schema, account
// seed, declarative resource import, policy compile. Any configuration
// problem is returned here so the process can abort before serving.
func New(ctx context.Context, log *zap.SugaredLogger, cfg config.Config, db *pgxpool.Pool, rdb *redis.Client, registry *Registry) (*App, error) {
	app := &App{log: log, cfg: cfg, db: db, registry: registry}

	if rdb != nil {
		app.revocations = NewRedisRevocations(rdb)
	} else {
		log.Warnf("redis not configured, logout will not revoke tokens server-side")
	}

	if db != nil {
		if err := EnsureSchema(ctx, db); err != nil {
			return nil, err
		}
		if err := SeedAccountsFromEnv(ctx, db, os.Getenv("ADMIN_ACCOUNTS_JSON")); err != nil {
			log.Warnw("account seed", "err", err)
		}
		app.accounts = NewPostgresAccounts(db, log)
	} else {
		app.accounts = NewMemoryAccountsFromEnv(log)
	}

	policy, err := authz.NewFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	app.policy = policy

	if cfg.ResourceDir != "" {
		err := registry.ImportDir(cfg.ResourceDir, func(entityType string) http.Handler {
			return NewEntityController(db, entityType, log)
		})
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Command prepctl is the operator CLI: it seeds the catalog, creates
// accounts and checks question files before they are uploaded.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/database"
	"github.com/stemsi/exprep-backend/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "prepctl",
		Short:        "Operator tools for the exam prep backend",
		SilenceUsage: true,
	}
	root.AddCommand(seedCmd(), createUserCmd(), validatePaperCmd())
	return root
}

// env is what database-backed commands share.
type env struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// connect loads config and opens PostgreSQL, plus Redis when withRedis is set.
// Logs go to stderr so stdout carries only command output.
func connect(ctx context.Context, withRedis bool) (*env, error) {
	cfg := config.Load()
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	e := &env{cfg: cfg, log: log, pool: pool}

	if withRedis {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		e.rdb = rdb
	}
	return e, nil
}

func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	e.pool.Close()
}

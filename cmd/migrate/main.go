package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"riskwatch/internal/config"
	"riskwatch/internal/db"
	"riskwatch/internal/domain"
	"riskwatch/internal/logging"
	"riskwatch/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const usage = "usage: migrate [up | down [steps] | version | status | create-admin <name> <email>]"

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	poolFunc         = func() repository.PgxPool {
		if db.Pool == nil {
			return nil
		}
		return db.Pool
	}
	exitFunc = os.Exit
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitFunc(1)
		return
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		exitFunc(1)
		return
	}

	ctx := context.Background()
	initPostgresFunc(ctx, cfg.DatabaseURL)
	defer db.Close()

	if err := run(ctx, logger, poolFunc(), os.Args[1:]); err != nil {
		logger.Error("migrate failed", zap.Error(err))
		exitFunc(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, pool repository.PgxPool, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	if pool == nil {
		return errors.New("no database connection")
	}
	if err := ensureMigrationTable(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	switch args[0] {
	case "up":
		applied, err := applyUp(ctx, pool, migrations)
		if err != nil {
			return fmt.Errorf("apply migrations up: %w", err)
		}
		logger.Info("migrations up complete", zap.Int("applied", applied))
	case "down":
		steps, err := parseSteps(args[1:])
		if err != nil {
			return err
		}
		rolledBack, err := applyDown(ctx, pool, migrations, steps)
		if err != nil {
			return fmt.Errorf("apply migrations down: %w", err)
		}
		logger.Info("migrations down complete", zap.Int("rolled_back", rolledBack))
	case "version":
		version, name, err := currentVersion(ctx, pool)
		if err != nil {
			return fmt.Errorf("read current version: %w", err)
		}
		if version == 0 {
			logger.Info("no migrations applied")
			return nil
		}
		logger.Info("current version", zap.Int64("version", version), zap.String("name", name))
	case "status":
		applied, err := loadAppliedVersions(ctx, pool)
		if err != nil {
			return fmt.Errorf("read applied versions: %w", err)
		}
		for _, m := range migrations {
			_, done := applied[m.Version]
			logger.Info("migration", zap.Int64("version", m.Version), zap.String("name", m.Name), zap.Bool("applied", done))
		}
		logger.Info("pending migrations", zap.Int("count", len(pending(migrations, applied))))
	case "create-admin":
		if len(args) != 3 {
			return errors.New(usage)
		}
		users := repository.NewUserRepository(pool, noop.NewTracerProvider().Tracer("migrate"))
		u, err := createAdmin(ctx, users, args[1], args[2])
		if err != nil {
			return err
		}
		logger.Info("admin user created", zap.Int64("id", u.ID), zap.String("email", u.Email))
	default:
		return fmt.Errorf("unknown command %q. %s", args[0], usage)
	}
	return nil
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid down steps: %q", args[0])
	}
	return n, nil
}

type userCreator interface {
	CreateUser(ctx context.Context, u *domain.User) error
}

func createAdmin(ctx context.Context, users userCreator, name, email string) (*domain.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("create-admin needs a name and a valid email, got %q %q", name, email)
	}
	u := &domain.User{Name: name, Email: email, IsAdmin: true}
	if err := users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return u, nil
}

func ensureMigrationTable(ctx context.Context, pool repository.PgxPool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func loadAppliedVersions(ctx context.Context, pool repository.PgxPool) (map[int64]struct{}, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	applied := make(map[int64]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}

func applyUp(ctx context.Context, pool repository.PgxPool, migrations []migration) (int, error) {
	applied, err := loadAppliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range pending(migrations, applied) {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("version %d up failed: %w", m.Version, err)
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func applyDown(ctx context.Context, pool repository.PgxPool, migrations []migration, steps int) (int, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
	if err != nil {
		return 0, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, err
	}
	plan, err := rollbackPlan(migrations, versions)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range plan {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.DownSQL); err != nil {
				return fmt.Errorf("version %d down failed: %w", m.Version, err)
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
			return err
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func currentVersion(ctx context.Context, pool repository.PgxPool) (int64, string, error) {
	var version int64
	var name string
	err := pool.QueryRow(ctx, `SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", nil
	}
	return version, name, err
}

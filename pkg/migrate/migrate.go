// Package migrate owns the Postgres schema. Goose migrations are embedded in
// the binary; SQLite gets an equivalent idempotent schema (see sqlite.go).
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

// DefaultDir is where create and validate operate on disk.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

var ErrUnknownCommand = errors.New("migrate: unknown command")

// Migrations exposes the embedded goose sources.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Runner drives goose against one database.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(db *sql.DB, sources fs.FS, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if sources == nil {
		sources = Migrations()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sources)
	if err != nil {
		return nil, fmt.Errorf("migrate: goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Exec runs up, down, redo, reset, status or version. target is only read
// by version.
func (r *Runner) Exec(ctx context.Context, command string, target int64) error {
	var (
		results []*goose.MigrationResult
		err     error
	)
	switch command {
	case "up":
		results, err = r.provider.Up(ctx)
	case "down":
		results, err = single(r.provider.Down(ctx))
	case "redo":
		results, err = single(r.provider.Down(ctx))
		if err == nil {
			var up []*goose.MigrationResult
			up, err = single(r.provider.UpByOne(ctx))
			results = append(results, up...)
		}
	case "reset":
		results, err = r.provider.DownTo(ctx, 0)
	case "version":
		results, err = r.migrateTo(ctx, target)
	case "status":
		return r.status(ctx)
	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, command)
	}
	r.report(ctx, results)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

func (r *Runner) migrateTo(ctx context.Context, target int64) ([]*goose.MigrationResult, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case target > current:
		return r.provider.UpTo(ctx, target)
	case target < current:
		return r.provider.DownTo(ctx, target)
	}
	return nil, nil
}

func (r *Runner) status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	for _, s := range statuses {
		fields := map[string]any{"version": s.Source.Version, "state": string(s.State)}
		if !s.AppliedAt.IsZero() {
			fields["applied_at"] = s.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), s.Source.Path)
	}
	return nil
}

func (r *Runner) report(ctx context.Context, results []*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		}), "applied "+res.Source.Path)
	}
}

func single(res *goose.MigrationResult, err error) ([]*goose.MigrationResult, error) {
	if res == nil {
		return nil, err
	}
	return []*goose.MigrationResult{res}, err
}

// ParseVersion accepts the YYYYMMDDHHMMSS prefix used in migration names.
func ParseVersion(s string) (int64, error) {
	if len(s) != 14 {
		return 0, fmt.Errorf("migrate: version %q must be YYYYMMDDHHMMSS", s)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("migrate: version %q: %w", s, err)
	}
	return v, nil
}

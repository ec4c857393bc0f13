package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/pkg/db/models"
)

const DefaultDir = "pkg/migrate/migrations"

// Runner applies the goose SQL files in a directory. It does not own db.
type Runner struct {
	provider *goose.Provider
}

// Status is one row of Runner.Status.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// NewRunner targets Postgres, the only dialect the shipped SQL is written for.
func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	return newRunner(goose.DialectPostgres, db, dir)
}

func newRunner(dialect goose.Dialect, db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("migrations dir is required")
	}
	provider, err := goose.NewProvider(dialect, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider for %s: %w", dir, err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration and returns the versions it ran.
func (r *Runner) Up(ctx context.Context) ([]int64, error) {
	results, err := r.provider.Up(ctx)
	return versions(results), wrap("up", err)
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) (int64, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return 0, wrap("down", err)
	}
	return result.Source.Version, nil
}

// To moves the schema up or down to target, given as YYYYMMDDHHMMSS.
func (r *Runner) To(ctx context.Context, target string) ([]int64, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return nil, fmt.Errorf("invalid migration version %q", target)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, wrap("version", err)
	}

	var results []*goose.MigrationResult
	switch {
	case version > current:
		results, err = r.provider.UpTo(ctx, version)
	case version < current:
		results, err = r.provider.DownTo(ctx, version)
	}
	return versions(results), wrap("to "+target, err)
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	rows, err := r.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Version:   row.Source.Version,
			Path:      row.Source.Path,
			Applied:   row.State == goose.StateApplied,
			AppliedAt: row.AppliedAt,
		})
	}
	return out, nil
}

func versions(results []*goose.MigrationResult) []int64 {
	out := make([]int64, 0, len(results))
	for _, res := range results {
		if res != nil && res.Source != nil {
			out = append(out, res.Source.Version)
		}
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}

// Models lists the GORM models of every table the service touches.
func Models() []any {
	return []any{
		&models.MaterielType{},
		&models.Materiel{},
		&models.MaterielLog{},
		&models.Role{},
		&models.RoleAssignment{},
	}
}

// AutoMigrateModels builds the schema from Models. sqlite only; the goose
// files are Postgres SQL.
func AutoMigrateModels(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

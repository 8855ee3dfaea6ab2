package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migration files are written and validated from.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Commands accepted by Run.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandStatus  = "status"
	CommandVersion = "version"
)

// Source returns the migration files. An empty dir selects the set compiled
// into the binary.
func Source(dir string) (fs.FS, error) {
	if strings.TrimSpace(dir) == "" {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	fsys, err := Source(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Run applies a single goose command against Postgres. Status lines and
// applied versions are written to out when it is non-nil.
func Run(ctx context.Context, db *sql.DB, dir, command string, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	provider, err := newProvider(db, dir)
	if err != nil {
		return err
	}

	switch command {
	case CommandUp:
		results, err := provider.Up(ctx)
		report(out, results)
		return wrapCommand(command, err)
	case CommandDown:
		result, err := provider.Down(ctx)
		if result != nil {
			report(out, []*goose.MigrationResult{result})
		}
		return wrapCommand(command, err)
	case CommandStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return wrapCommand(command, err)
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-24s %s\n", applied, st.Source.Path)
		}
		return nil
	case CommandVersion:
		current, err := provider.GetDBVersion(ctx)
		if err != nil {
			return wrapCommand(command, err)
		}
		fmt.Fprintln(out, current)
		return nil
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
}

// MigrateToVersion moves the schema up or down until target is the newest
// applied version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, target string) error {
	version, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil || version < 0 {
		return fmt.Errorf("invalid target version %q", target)
	}
	provider, err := newProvider(db, dir)
	if err != nil {
		return err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return wrapCommand(CommandVersion, err)
	}

	switch {
	case version > current:
		_, err = provider.UpTo(ctx, version)
	case version < current:
		_, err = provider.DownTo(ctx, version)
	}
	return wrapCommand(CommandVersion, err)
}

func report(out io.Writer, results []*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fmt.Fprintf(out, "%-4s %d %s (%s)\n", res.Direction, res.Source.Version, res.Source.Path, res.Duration)
	}
}

func wrapCommand(command string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}

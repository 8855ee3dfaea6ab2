package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/expiry-tracker/pkg/config"
	"github.com/angelmondragon/expiry-tracker/pkg/db"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/angelmondragon/expiry-tracker/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// command is one -cmd value. Offline commands never open the database.
type command struct {
	offline bool
	sqlite  bool
	run     func(ctx context.Context, env *runEnv, opts options) error
}

type runEnv struct {
	client *db.Client
	sqlDB  *sql.DB
}

var commands = map[string]command{
	"create": {offline: true, run: func(_ context.Context, _ *runEnv, opts options) error {
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(fileDir(opts.dir), opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	}},
	"validate": {offline: true, run: func(_ context.Context, _ *runEnv, opts options) error {
		if err := migrate.ValidateDir(fileDir(opts.dir)); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}},
	migrate.CommandUp: {sqlite: true, run: func(ctx context.Context, env *runEnv, opts options) error {
		if env.sqlDB == nil {
			return migrate.AutoMigrateModels(env.client.DB())
		}
		return migrate.Run(ctx, env.sqlDB, opts.dir, migrate.CommandUp, os.Stdout)
	}},
	migrate.CommandDown:   {run: goose(migrate.CommandDown)},
	migrate.CommandStatus: {run: goose(migrate.CommandStatus)},
	migrate.CommandVersion: {run: func(ctx context.Context, env *runEnv, opts options) error {
		if opts.version == "" {
			return migrate.Run(ctx, env.sqlDB, opts.dir, migrate.CommandVersion, os.Stdout)
		}
		return migrate.MigrateToVersion(ctx, env.sqlDB, opts.dir, opts.version)
	}},
}

func goose(name string) func(context.Context, *runEnv, options) error {
	return func(ctx context.Context, env *runEnv, opts options) error {
		return migrate.Run(ctx, env.sqlDB, opts.dir, name, os.Stdout)
	}
}

func fileDir(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", migrate.CommandUp, "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (empty uses the embedded set; create/validate default to "+migrate.DefaultDir+")")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version; empty prints the current version")
	flag.Parse()

	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "config load failed", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
	})
	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate finished")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	cmd, ok := commands[opts.cmd]
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
	if cmd.offline {
		return cmd.run(ctx, nil, opts)
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()

	env := &runEnv{client: client}
	if cfg.DB.Driver == config.DriverSQLite {
		if !cmd.sqlite {
			return fmt.Errorf("-cmd=%s is only supported on postgres", opts.cmd)
		}
		return cmd.run(ctx, env, opts)
	}

	env.sqlDB, err = client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	return cmd.run(ctx, env, opts)
}

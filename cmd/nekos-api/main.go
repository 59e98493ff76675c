package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/nekidev/nekos-api/internal/apply"
	"github.com/nekidev/nekos-api/internal/config"
	"github.com/nekidev/nekos-api/internal/db"
	"github.com/nekidev/nekos-api/internal/logging"
	"github.com/nekidev/nekos-api/internal/registry"
)

var configPath string

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nekos-api",
		Short:         "Anime image API and its resource schema registry",
		Long:          "nekos-api serves the /v2 API and manages the schema-change records of its resources.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./nekos-api.yaml)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newLineageCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	target   *sqlx.DB
	registry *registry.Registry
	engine   *apply.Engine
}

// openApp loads config, sets up logging, opens and migrates the registry
// database and opens the apply target. close releases both connections.
func openApp() (a *app, closeFn func(), err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, nil, err
	}

	database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { _ = database.Close() }}
	closeFn = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			closeFn()
		}
	}()

	if err := db.Migrate(database, cfg.DB.Driver); err != nil {
		return nil, nil, err
	}

	target := database
	if !cfg.SameDatabase() {
		target, err = db.New(cfg.Target.Driver, cfg.Target.DSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = target.Close() })
	}
	dialect, err := apply.ParseDialect(cfg.Target.Driver)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New(registry.NewSQLStore(database), cfg.Registry.PageSize)
	return &app{
		cfg:      cfg,
		db:       database,
		target:   target,
		registry: reg,
		engine:   apply.NewEngine(target, dialect, reg),
	}, closeFn, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmynk/geocaching/internal/config"
	"github.com/mmynk/geocaching/internal/storage/sqlite"
	"github.com/mmynk/geocaching/pkg/logging"
)

// app is shared by all subcommands. settings is filled in before any
// subcommand runs.
type app struct {
	v          *viper.Viper
	configFile string
	settings   *config.Settings
}

func newApp() *app {
	return &app{v: config.New()}
}

func rootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "geocaching",
		Short:        "Geocaching map server",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	cobra.CheckErr(a.v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db")))
	cobra.CheckErr(a.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(a.v, a.configFile)
		if err != nil {
			return err
		}
		a.settings = settings
		logging.Setup(settings.Log.Level, settings.Log.Format)
		return nil
	}

	rootCmd.AddCommand(
		serveCommand(a),
		importCommand(a),
		exportCommand(a),
		resetCommand(a),
		tokenCommand(a),
	)

	return rootCmd
}

// openStore opens the configured database.
func (a *app) openStore() (*sqlite.SQLiteStore, error) {
	store, err := sqlite.New(a.settings.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/geocaching/internal/datafile"
	"github.com/mmynk/geocaching/internal/models"
	"github.com/mmynk/geocaching/internal/service"
)

func importCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the dataset with the contents of a data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ds, err := datafile.Parse(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ImportDataset(cmd.Context(), ds); err != nil {
				return err
			}

			slog.Info("Dataset imported",
				"file", args[0],
				"persons", len(ds.Persons),
				"geocaches", len(ds.Geocaches),
				"found", len(ds.Found),
			)
			return nil
		},
	}
}

func exportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the dataset as a data file, to stdout when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ds, err := service.LoadDataset(cmd.Context(), store)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				if err := datafile.Write(cmd.OutOrStdout(), ds); err != nil {
					return err
				}
			} else if err := writeFile(args[0], ds); err != nil {
				return err
			}

			slog.Info("Dataset exported", "persons", len(ds.Persons), "geocaches", len(ds.Geocaches))
			return nil
		},
	}
}

// writeFile writes ds to path, reporting close errors.
func writeFile(path string, ds *models.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := datafile.Write(f, ds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func resetCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every person, geocache and found record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset %s without --yes", a.settings.Database.Path)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}

			slog.Info("Dataset reset", "database", a.settings.Database.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")

	return cmd
}

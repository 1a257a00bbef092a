package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kitchen360/catalog/internal/catalogfile"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Load rooms, views and storage areas from a YAML seed file",
		Long: `Writes the rooms in a YAML seed file into the configured storage backend.
Image paths in the file are read relative to the file and stored as blobs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := catalogfile.LoadSeed(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d rooms\n", args[0], len(seed.Rooms))
				return nil
			}

			rt, err := newRuntime(opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			res, err := catalogfile.Apply(cmd.Context(), rt.backend, seed, filepath.Dir(args[0]), rt.logs.Component("seed"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d rooms, %d views, %d storage areas, %d images\n",
				res.Rooms, res.Views, res.Areas, res.Images)
			for key, id := range res.ViewIDs {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s\n", key, id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only validate the file")
	return cmd
}

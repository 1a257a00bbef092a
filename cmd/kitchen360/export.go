package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitchen360/catalog/internal/catalogfile"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog to Parquet or YAML",
		Long: `Exports from the configured storage backend. The format follows the
output extension: .parquet writes one row per storage area, .yaml or .yml writes
a seed file that "kitchen360 seed" can load again.`,
		Example: `  kitchen360 export --out areas.parquet
  kitchen360 export --out catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext := strings.ToLower(filepath.Ext(out))
			if ext != ".parquet" && ext != ".yaml" && ext != ".yml" {
				return fmt.Errorf("unsupported export format: %s (supported: .parquet, .yaml)", ext)
			}

			rt, err := newRuntime(opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			if ext == ".parquet" {
				rows, err := catalogfile.AreaRows(cmd.Context(), rt.backend)
				if err != nil {
					return err
				}
				if err := catalogfile.WriteParquet(out, rows); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d storage areas to %s\n", len(rows), out)
			} else {
				if err := catalogfile.WriteSeed(cmd.Context(), rt.backend, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote catalog to %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "areas.parquet", "Output file")
	return cmd
}

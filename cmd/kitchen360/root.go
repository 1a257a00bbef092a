package main

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kitchen360/catalog/internal/config"
)

type rootOptions struct {
	configDir string
	serverURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "kitchen360",
		Short: "Catalog kitchen storage areas on 360° panoramas",
		Long: `kitchen360 serves a catalog of rooms, panorama views and the storage
areas marked on them. Viewers connect over WebSocket, click a spot in a panorama
and describe the cabinet, drawer or shelf they found there.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configDir, "config", "c", ".", "Directory containing "+config.FileName)
	cmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", "http://localhost:8360", "Catalog server URL for client commands")

	cmd.AddCommand(
		newServeCmd(opts),
		newAreasCmd(opts),
		newSeedCmd(opts),
		newExportCmd(opts),
		newPreviewCmd(opts),
		newTailCmd(opts),
	)
	return cmd
}

// loadConfig reads the config file. A missing file leaves the defaults and
// environment overrides in place.
func loadConfig(dir string) error {
	err := config.Load(dir)
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

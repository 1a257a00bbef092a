package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kitchen360/catalog/internal/cache"
	"github.com/kitchen360/catalog/internal/config"
	"github.com/kitchen360/catalog/internal/session"
	"github.com/kitchen360/catalog/internal/surface"
)

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "preview VIEW_ID",
		Short: "Open a view headlessly and print what a viewer would receive",
		Long: `Runs a viewer session against the configured storage backend without a
browser. Every message the session renders is printed as one JSON line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			rec := surface.NewRecorder()
			sess, err := session.New(rec, session.Config{
				Backend: rt.backend,
				Viewer:  config.GetViewerConfig(),
				Images:  cache.NewImageCache(),
				Logger:  rt.logs.Component("preview"),
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.Open(cmd.Context(), args[0]); err != nil {
				return err
			}

			deadline := time.Now().Add(wait)
			ctrl := sess.Controller()
			for ctrl.Mounted() && !ctrl.Ready() && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, env := range rec.Rendered() {
				if err := enc.Encode(env); err != nil {
					return err
				}
			}
			sel := sess.Selection()
			fmt.Fprintf(cmd.ErrOrStderr(), "%s / %s: %d markers\n",
				sel.Room().Name, sel.View().Name, len(sess.Controller().MarkerIDs()))
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "How long to wait for the panorama to load")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kitchen360/catalog/internal/api"
	"github.com/kitchen360/catalog/internal/surface/websocket"
	"github.com/kitchen360/catalog/pkg/streaming"
)

func newTailCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tail [VIEW_ID]",
		Short: "Connect as a viewer and print every message the server sends",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewID := ""
			if len(args) == 1 {
				viewID = args[0]
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)

			url := api.New(opts.serverURL).ViewerURL(viewID)
			client, err := websocket.Dial(url, func(env streaming.Envelope) {
				_ = enc.Encode(env)
			}, nil)
			if err != nil {
				return fmt.Errorf("connect %s: %w", url, err)
			}
			defer client.Close()

			<-cmd.Context().Done()
			return nil
		},
	}
}

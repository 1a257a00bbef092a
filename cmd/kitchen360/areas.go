package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kitchen360/catalog/internal/api"
	"github.com/kitchen360/catalog/internal/geo"
	"github.com/kitchen360/catalog/pkg/core"
)

func newAreasCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "areas",
		Short: "List and add storage areas on a running server",
	}
	cmd.AddCommand(newAreasListCmd(opts), newAreasAddCmd(opts), newAreasRemoveCmd(opts))
	return cmd
}

func newAreasListCmd(opts *rootOptions) *cobra.Command {
	var viewID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List storage areas, optionally for one view",
		RunE: func(cmd *cobra.Command, args []string) error {
			areas, err := api.New(opts.serverURL).ListAreas(viewID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVIEW\tTYPE\tNAME\tYAW\tPITCH")
			for _, a := range areas {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%.3f\n", a.ID, a.ViewID, a.Type, a.Name, a.Position.Yaw, a.Position.Pitch)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&viewID, "view", "", "Only list areas of this view")
	return cmd
}

func newAreasAddCmd(opts *rootOptions) *cobra.Command {
	var (
		viewID      string
		name        string
		areaType    string
		description string
		at          string
		image       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a storage area to a view",
		Example: `  # A drawer slightly left of and below the view's center
  kitchen360 areas add --view 3f2a... --name Cutlery --type Drawer --at "6.0,-0.3"

  # Attach a close-up photo
  kitchen360 areas add --view 3f2a... --name Spices --type Shelf --at "1.2,0.1,40" --image spices.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := core.ParseStorageAreaType(areaType)
			if err != nil {
				return err
			}
			pos, err := geo.PositionFromString(at, 50)
			if err != nil {
				return fmt.Errorf("--at %q: %w", at, err)
			}

			client := api.New(opts.serverURL)
			area := core.StorageArea{Name: name, Type: typ, Description: description, Position: pos}
			if image != "" {
				url, err := client.UploadImage(image)
				if err != nil {
					return err
				}
				area.ImageURL = url
			}

			created, err := client.CreateArea(viewID, area)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (%s)\n", created.Type, created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&viewID, "view", "", "View to add the area to")
	cmd.Flags().StringVar(&name, "name", "", "Area name")
	cmd.Flags().StringVar(&areaType, "type", string(core.AreaCabinet), "Cabinet, Drawer, Shelf or Custom")
	cmd.Flags().StringVar(&description, "description", "", "Free text description")
	cmd.Flags().StringVar(&at, "at", "", "Position as yaw,pitch[,zoom] in radians")
	cmd.Flags().StringVar(&image, "image", "", "Close-up photo to upload")
	_ = cmd.MarkFlagRequired("view")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newAreasRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID...",
		Short: "Remove storage areas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.New(opts.serverURL)
			for _, id := range args {
				if err := client.DeleteArea(id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed", id)
			}
			return nil
		},
	}
}


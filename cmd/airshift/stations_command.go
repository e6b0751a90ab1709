package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"airshift/internal/services/radiko"
)

func newStationsCommand(ctx *commandContext) *cobra.Command {
	var areaFlag string

	cmd := &cobra.Command{
		Use:   "stations",
		Short: "List stations available in the configured area",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			authTimeout := time.Duration(cfg.Radiko.AuthTimeout) * time.Second
			area := areaFlag
			if area == "" {
				auth := radiko.NewAuthClient(authTimeout)
				capability, err := auth.Authorize(cmd.Context(), cfg.Radiko.AreaID)
				if err != nil {
					return fmt.Errorf("determine area: %w", err)
				}
				area = capability.AreaID
			}

			registry := radiko.NewStationRegistry(authTimeout)
			stations, err := registry.Stations(cmd.Context(), area)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(stations))
			for _, station := range stations {
				rows = append(rows, []string{station.ID, station.Name})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Area %s\n%s\n", area, renderTable(
				[]string{"ID", "Name"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&areaFlag, "area", "", "Area code override (e.g. JP13)")
	return cmd
}

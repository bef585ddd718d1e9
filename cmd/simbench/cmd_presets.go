package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"simbench/internal/simnet"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the simulation presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range simnet.PresetNames() {
				sim, err := simnet.Preset(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %v\n", name, sim.Net.Latency.Default)
			}
			return nil
		},
	}
}

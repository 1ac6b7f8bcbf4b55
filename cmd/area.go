package main

import (
	"github.com/spf13/cobra"
)

var areaCmd = &cobra.Command{
	Use:   "area <fips>",
	Short: "Print county demographics for a 5-digit FIPS code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context(), "area")
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.Engine.ResolveAreaMetrics(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), m)
	},
}

func init() {
	rootCmd.AddCommand(areaCmd)
}

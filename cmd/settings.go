package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write persisted settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a persisted setting (default: the override key)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initSettings(cmd.Context())
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("settings: no store configured (settings.driver is none)")
		}
		defer st.Close() //nolint:errcheck

		key := settingsKey(args)
		v, ok, err := st.Get(cmd.Context(), key)
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("settings: %s is not set", key)
		}
		reveal, _ := cmd.Flags().GetBool("reveal")
		if !reveal {
			v = mask(v)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
		return err
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initSettings(cmd.Context())
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("settings: no store configured (settings.driver is none)")
		}
		defer st.Close() //nolint:errcheck

		if err := st.Set(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
		return err
	},
}

func settingsKey(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Settings.OverrideKey
}

// mask hides all but the last four characters.
func mask(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func init() {
	settingsGetCmd.Flags().Bool("reveal", false, "print the full value")
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change stored settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings (the token is masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		s := app.Service.Settings()
		if s.Token != "" {
			s.Token = "********"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "# %s\n", app.Config.Path())
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:     "set key=value...",
	Short:   "Merge values into the settings file",
	Example: `  wool settings set model=meta-llama/llama-3-70b::together n_siblings=4`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bag, err := parseSettings(args)
		if err != nil {
			return err
		}
		app, err := buildApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		if _, err := app.Service.UpdateSettings(bag); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", app.Config.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
}

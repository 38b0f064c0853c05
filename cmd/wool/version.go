package main

import (
	"fmt"
	"strings"

	"github.com/lyramakesmusic/wool"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of wool",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wool version %s\n", strings.TrimSpace(wool.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"

	"github.com/lyramakesmusic/wool/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the tree as a Mermaid diagram",
	Long:  `Loads the stored tree and outputs a Mermaid diagram (graph TD) with the focused path highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		tree, err := app.Service.Tree(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(tree))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

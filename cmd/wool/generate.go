package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Continue a node with sibling generations",
	Long: `Adds n loading siblings under the focused node (or --parent) and generates
them in parallel from the node's root path. Each sibling succeeds or fails on
its own; failures are recorded on the node and printed, not returned.`,
	Example: `  wool generate -n 5
  wool generate --parent 3f2a --set temperature=1.1 --set max_tokens=64`,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("n")
		output, _ := cmd.Flags().GetString("output")
		sets, _ := cmd.Flags().GetStringArray("set")

		bag, err := parseSettings(sets)
		if err != nil {
			return err
		}

		app, err := buildApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		parent, err := parentFlag(cmd, app.Service.Tree)
		if err != nil {
			return err
		}
		resp, err := app.Service.GenerateFrom(cmd.Context(), parent, n, bag)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if output == "json" {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		for _, o := range resp.Nodes {
			if o.Error != nil {
				fmt.Fprintf(w, "%s  error: %s\n", o.ID, *o.Error)
				continue
			}
			fmt.Fprintf(w, "%s  %q\n", o.ID, o.Text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntP("n", "n", 0, "Number of siblings (default: n_siblings setting)")
	generateCmd.Flags().String("parent", "", "Parent node id or prefix (default: focused node)")
	generateCmd.Flags().StringArray("set", nil, "Per-call setting override as key=value (repeatable)")
	generateCmd.Flags().StringP("output", "o", "text", "Output format: text or json")
}

// parseSettings turns key=value pairs into a settings bag. Values stay
// strings; the settings decoder converts them to the field types.
func parseSettings(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	bag := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid setting %q (want key=value)", p)
		}
		bag[strings.TrimSpace(k)] = v
	}
	return bag, nil
}

// parentFlag resolves --parent against the current tree. Empty means the
// focused node.
func parentFlag(cmd *cobra.Command, load func(context.Context) (*domain.Tree, error)) (string, error) {
	ref, _ := cmd.Flags().GetString("parent")
	if ref == "" {
		return "", nil
	}
	tree, err := load(cmd.Context())
	if err != nil {
		return "", err
	}
	return resolveID(tree, ref)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lyramakesmusic/wool/internal/presentation/tui"
	"github.com/lyramakesmusic/wool/pkg/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Inspect and edit the stored tree",
}

var treeCreateCmd = &cobra.Command{
	Use:   "create [seed text]",
	Short: "Replace the tree with a single root holding the seed text",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := textArg(cmd, args)
		if err != nil {
			return err
		}
		app, err := buildApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		tree, err := app.Service.CreateTree(cmd.Context(), seed)
		if err != nil {
			return err
		}
		return printTree(cmd, tree)
	},
}

var treeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the tree",
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
		return printTree(cmd, tree)
	},
}

var treeFocusCmd = &cobra.Command{
	Use:   "focus <node-id>",
	Short: "Focus a node (a unique id prefix is enough)",
	Args:  cobra.ExactArgs(1),
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
		id, err := resolveID(tree, args[0])
		if err != nil {
			return err
		}
		tree, err = app.Service.Focus(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printTree(cmd, tree)
	},
}

var treeAppendCmd = &cobra.Command{
	Use:   "append [text]",
	Short: "Append user text under the focused node (or --parent) and focus it",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(cmd, args)
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
		if _, err := app.Service.AppendUserNode(cmd.Context(), parent, text); err != nil {
			return err
		}
		tree, err := app.Service.Tree(cmd.Context())
		if err != nil {
			return err
		}
		return printTree(cmd, tree)
	},
}

var treeContextCmd = &cobra.Command{
	Use:   "context [node-id]",
	Short: "Print the text from the root down to a node (default: focused)",
	Args:  cobra.MaximumNArgs(1),
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
		id := tree.FocusedNodeID()
		if len(args) == 1 {
			if id, err = resolveID(tree, args[0]); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.NewRenderer(cmd.OutOrStdout()).Context(tree, id))
		return nil
	},
}

var treeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tree names",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd, false)
		if err != nil {
			return err
		}
		defer app.Close()

		names, err := app.Service.ListTrees(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.AddCommand(treeCreateCmd, treeShowCmd, treeFocusCmd, treeAppendCmd, treeContextCmd, treeListCmd)

	treeCmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json or yaml")
	treeAppendCmd.Flags().String("parent", "", "Parent node id or prefix (default: focused node)")
}

// textArg joins the arguments, or reads stdin when there are none.
func textArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// resolveID accepts a full node id or a unique prefix of one.
func resolveID(tree *domain.Tree, ref string) (string, error) {
	if _, ok := tree.Node(ref); ok {
		return ref, nil
	}
	var match string
	for id := range tree.Snapshot().Nodes {
		if strings.HasPrefix(id, ref) {
			if match != "" {
				return "", fmt.Errorf("node prefix %q is ambiguous", ref)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("node %q: %w", ref, domain.ErrNodeNotFound)
	}
	return match, nil
}

func printTree(cmd *cobra.Command, tree *domain.Tree) error {
	output, _ := cmd.Flags().GetString("output")
	w := cmd.OutOrStdout()

	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree.Snapshot()); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		fmt.Fprint(w, tui.NewRenderer(w).Outline(tree))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
	}
}

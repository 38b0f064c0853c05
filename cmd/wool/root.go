package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lyramakesmusic/wool/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wool",
	Short: "Wool grows branching text trees with parallel model continuations",
	Long: `Wool keeps a tree of text fragments. Any node can be continued by several
sibling generations at once, each built from the text on its root path.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command context.
func Execute() {
	ctx := cli.NewSignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	ctx.Cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	f := rootCmd.PersistentFlags()
	f.String("dir", ".", "Directory holding config.json and stored trees")
	f.String("config", "", "Settings file (default: <dir>/config.json; .yaml and .toml also work)")
	f.String("store", cli.StoreFile, "Tree store: file, memory or redis")
	f.String("tree", "", "Name the tree is stored under (default: tree_state)")
	f.String("redis-addr", "localhost:6379", "Redis address (--store=redis)")
	f.String("redis-password", "", "Redis password (--store=redis)")
	f.Int("redis-db", 0, "Redis database (--store=redis)")
	f.Duration("redis-ttl", 0, "Expire stored trees after this long (--store=redis, 0 keeps them)")
	f.String("log-level", "", "Log to stderr at debug, info, warn or error")
	f.String("encryption-key", "", "Seal stored trees with this 32-byte key, hex or base64 (default: $WOOL_ENCRYPTION_KEY)")
}

// optionsFromFlags reads the persistent flags.
func optionsFromFlags(cmd *cobra.Command) cli.Options {
	f := cmd.Flags()
	var opts cli.Options
	opts.Dir, _ = f.GetString("dir")
	opts.ConfigPath, _ = f.GetString("config")
	opts.Store, _ = f.GetString("store")
	opts.TreeName, _ = f.GetString("tree")
	opts.RedisAddr, _ = f.GetString("redis-addr")
	opts.RedisPassword, _ = f.GetString("redis-password")
	opts.RedisDB, _ = f.GetInt("redis-db")
	opts.RedisTTL, _ = f.GetDuration("redis-ttl")
	opts.LogLevel, _ = f.GetString("log-level")
	opts.EncryptionKey, _ = f.GetString("encryption-key")
	if opts.EncryptionKey == "" {
		opts.EncryptionKey = os.Getenv("WOOL_ENCRYPTION_KEY")
	}
	return opts
}

// buildApp wires a Service from the persistent flags.
func buildApp(cmd *cobra.Command, metrics bool) (*cli.App, error) {
	opts := optionsFromFlags(cmd)
	opts.Metrics = metrics
	return cli.Build(cmd.Context(), opts)
}

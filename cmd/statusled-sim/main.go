//go:build !tinygo

// Command statusled-sim runs the status indicator on the host against a
// loopback transmit channel, and inspects encoded frames and the node's
// key-value store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"nodestatus-go/logging"
	"nodestatus-go/services/config"
	"nodestatus-go/types"
)

var rootCmd = &cobra.Command{
	Use:           "statusled-sim",
	Short:         "Host simulator for the node status indicator",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd.Flags())
		if err != nil {
			return err
		}
		logging.Initialize(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		nodeCfg = cfg
		return nil
	},
}

// nodeCfg is the resolved configuration for the running subcommand.
var nodeCfg types.NodeConfig

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(runCmd, encodeCmd, kvCmd, boardsCmd)
}

func addConfigFlags(pf *pflag.FlagSet) {
	pf.StringP("board", "b", "default", "embedded board config to start from")
	pf.StringP("config", "c", "", "TOML file overlaid on the board config")
	pf.Int("led-pin", 0, "LED data pin")
	pf.String("storage-dir", "", "directory for the key-value store (empty keeps it in memory)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
}

// resolveConfig applies board < file < flag. Only flags set on the command
// line override.
func resolveConfig(fs *pflag.FlagSet) (types.NodeConfig, error) {
	board, _ := fs.GetString("board")
	cfg, err := config.Load(board)
	if err != nil {
		return cfg, err
	}
	if path, _ := fs.GetString("config"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := config.Overlay(&cfg, raw); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "led-pin":
			cfg.LED.Pin, _ = fs.GetInt(f.Name)
		case "storage-dir":
			cfg.Storage.Dir = f.Value.String()
		case "log-level":
			cfg.Log.Level = f.Value.String()
		case "log-format":
			cfg.Log.Format = f.Value.String()
		}
	})
	return cfg, config.Validate(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

//go:build !tinygo

package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"nodestatus-go/services/config"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List embedded boards, or print the resolved config with --show",
	RunE: func(cmd *cobra.Command, args []string) error {
		if show, _ := cmd.Flags().GetBool("show"); show {
			raw, err := toml.Marshal(nodeCfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(raw))
			return nil
		}
		for _, b := range config.Boards() {
			fmt.Fprintln(cmd.OutOrStdout(), b)
		}
		return nil
	},
}

func init() {
	boardsCmd.Flags().Bool("show", false, "print the resolved configuration as TOML")
}

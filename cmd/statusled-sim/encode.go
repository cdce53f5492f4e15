//go:build !tinygo

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nodestatus-go/drivers/ws2812"
	"nodestatus-go/types"
)

var encodeCmd = &cobra.Command{
	Use:   "encode R G B",
	Short: "Show the wire frame and symbols for one color",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rgb [3]uint8
		for i, a := range args {
			v, err := strconv.ParseUint(a, 0, 8)
			if err != nil {
				return fmt.Errorf("component %d: %w", i, err)
			}
			rgb[i] = uint8(v)
		}
		return encodeColor(cmd, types.Color{R: rgb[0], G: rgb[1], B: rgb[2]})
	},
}

func encodeColor(cmd *cobra.Command, c types.Color) error {
	enc, err := ws2812.NewEncoder(ws2812.DefaultTiming)
	if err != nil {
		return err
	}
	defer enc.Close()
	f := ws2812.Frame(c)
	syms, err := enc.Encode(nil, f[:])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "color  r=%d g=%d b=%d\n", c.R, c.G, c.B)
	fmt.Fprintf(out, "wire   %02x %02x %02x (g r b)\n", f[0], f[1], f[2])
	for i := 0; i < len(syms); i += 8 {
		var sb strings.Builder
		for _, s := range syms[i : i+8] {
			fmt.Fprintf(&sb, " %d/%d", s.Duration0, s.Duration1)
		}
		fmt.Fprintf(out, "byte %d%s\n", i/8, sb.String())
	}
	back, err := ws2812.Decode(syms, ws2812.DefaultResolutionHz)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "decode %02x %02x %02x\n", back[0], back[1], back[2])
	return nil
}

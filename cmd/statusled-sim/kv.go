//go:build !tinygo

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nodestatus-go/errcode"
	"nodestatus-go/services/kvstore"
)

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Inspect and edit the node's key-value store",
}

var kvSetCmd = &cobra.Command{
	Use:   "set KEY KIND VALUE",
	Short: "Store VALUE; KIND is u8..i64, or blob with VALUE in hex",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		return kvSet(s, args[0], args[1], args[2])
	},
}

var kvGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value stored under KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		v, err := kvGet(s, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var kvEraseCmd = &cobra.Command{
	Use:   "erase KEY",
	Short: "Remove KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		return s.Erase(args[0])
	},
}

var kvListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys with their kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		keys, err := s.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			v, err := kvGet(s, k)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-15s %s\n", k, v)
		}
		return nil
	},
}

func init() {
	kvCmd.PersistentFlags().StringP("namespace", "n", "node", "store namespace")
	kvCmd.AddCommand(kvSetCmd, kvGetCmd, kvEraseCmd, kvListCmd)
}

func openStore(cmd *cobra.Command) (*kvstore.Store, error) {
	if nodeCfg.Storage.Dir == "" {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "kv", Msg: "--storage-dir is required"}
	}
	fb, err := kvstore.NewFileBackend(nodeCfg.Storage.Dir)
	if err != nil {
		return nil, err
	}
	ns, _ := cmd.Flags().GetString("namespace")
	return kvstore.New(fb, ns)
}

func kvSet(s *kvstore.Store, key, kind, value string) error {
	if kind == "blob" {
		b, err := hex.DecodeString(value)
		if err != nil {
			return err
		}
		return s.SaveBlob(key, b)
	}
	signed := strings.HasPrefix(kind, "i")
	var bits int
	switch kind {
	case "u8", "i8":
		bits = 8
	case "u16", "i16":
		bits = 16
	case "u32", "i32":
		bits = 32
	case "u64", "i64":
		bits = 64
	default:
		return &errcode.E{C: errcode.InvalidParams, Op: "kv.set", Msg: "unknown kind " + kind}
	}
	if signed {
		v, err := strconv.ParseInt(value, 0, bits)
		if err != nil {
			return err
		}
		switch bits {
		case 8:
			return kvstore.Save(s, key, int8(v))
		case 16:
			return kvstore.Save(s, key, int16(v))
		case 32:
			return kvstore.Save(s, key, int32(v))
		}
		return kvstore.Save(s, key, v)
	}
	v, err := strconv.ParseUint(value, 0, bits)
	if err != nil {
		return err
	}
	switch bits {
	case 8:
		return kvstore.Save(s, key, uint8(v))
	case 16:
		return kvstore.Save(s, key, uint16(v))
	case 32:
		return kvstore.Save(s, key, uint32(v))
	}
	return kvstore.Save(s, key, v)
}

// kvGet renders the value as "kind value".
func kvGet(s *kvstore.Store, key string) (string, error) {
	k, err := s.Kind(key)
	if err != nil {
		return "", err
	}
	var v any
	switch k {
	case kvstore.KindU8:
		v, err = kvstore.Load[uint8](s, key)
	case kvstore.KindI8:
		v, err = kvstore.Load[int8](s, key)
	case kvstore.KindU16:
		v, err = kvstore.Load[uint16](s, key)
	case kvstore.KindI16:
		v, err = kvstore.Load[int16](s, key)
	case kvstore.KindU32:
		v, err = kvstore.Load[uint32](s, key)
	case kvstore.KindI32:
		v, err = kvstore.Load[int32](s, key)
	case kvstore.KindU64:
		v, err = kvstore.Load[uint64](s, key)
	case kvstore.KindI64:
		v, err = kvstore.Load[int64](s, key)
	case kvstore.KindBlob:
		n, _ := s.LoadBlob(key, nil)
		buf := make([]byte, n)
		if _, err := s.LoadBlob(key, buf); err != nil {
			return "", err
		}
		return "blob " + hex.EncodeToString(buf), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %v", k, v), nil
}

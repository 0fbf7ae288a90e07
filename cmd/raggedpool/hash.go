package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/go-raggedpool/internal/ragged"
)

func newHashCmd() *cobra.Command {
	var seed string

	cmd := &cobra.Command{
		Use:   "hash KEY...",
		Short: "Hash 64-bit keys with MurmurHash3 x64_128",
		Long: `Prints one line per key: the key followed by the four 32-bit output words
in hex. Keys accept Go integer syntax (42, 0x2a, 0b101010).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}

			e, cfg, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			s := cfg.Hash.Seed
			if seed != "" {
				s, err = strconv.ParseUint(seed, 0, 64)
				if err != nil {
					return fmt.Errorf("invalid --seed %q: %w", seed, err)
				}
			}

			out, err := e.Hash(cmd.Context(), keys, s)
			if err != nil {
				return err
			}

			return writeHashes(cmd.OutOrStdout(), keys, out)
		},
	}

	cmd.Flags().StringVar(&seed, "seed", "", "Seed (overrides --hash-seed)")

	return cmd
}

func parseKeys(args []string) ([]uint64, error) {
	keys := make([]uint64, len(args))
	for i, a := range args {
		k, err := strconv.ParseUint(a, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", a, err)
		}
		keys[i] = k
	}

	return keys, nil
}

func writeHashes(w io.Writer, keys []uint64, out ragged.Matrix[uint32]) error {
	for i, k := range keys {
		h := out.Row(i)
		if _, err := fmt.Fprintf(w, "%d\t%08x %08x %08x %08x\n", k, h[0], h[1], h[2], h[3]); err != nil {
			return err
		}
	}

	return nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-raggedpool/internal/ragged"
)

func newKernelsCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "kernels",
		Short: "List the compute entry points and where they are bound",
		RunE: func(_ *cobra.Command, _ []string) error {
			e, _, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			return listKernels(e, showSource, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Print each entry point's source")

	return cmd
}

func listKernels(e *ragged.Engine, showSource bool, w io.Writer) error {
	reg := e.Registry()

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%-20s  %-12s  %s\n", "NAME", "DOCUMENT", "DEVICE")
	for _, name := range reg.Names() {
		ep, _ := reg.Entry(name)

		device := "unbound"
		if k, err := reg.Lookup(name); err == nil {
			device = k.Device()
		}
		fmt.Fprintf(sb, "%-20s  %-12s  %s\n", ep.Name, ep.Document, device)
	}
	if _, err := fmt.Fprint(w, sb.String()); err != nil {
		return err
	}

	if !showSource {
		return nil
	}

	for _, name := range reg.Names() {
		ep, _ := reg.Entry(name)
		fmt.Fprintf(w, "\n// ---- %s (%s) ----\n%s\n", ep.Name, ep.Document, strings.TrimSpace(ep.Body))
	}

	return nil
}

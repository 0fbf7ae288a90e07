package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-raggedpool/internal/backend/cpu"
	"github.com/example/go-raggedpool/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	var (
		requireBackend bool
		kernelFiles    []string
		skipSmoke      bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run backend, kernel and smoke checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cfg, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			_, _ = fmt.Fprintf(os.Stdout, "backend: %s (launch %s, group size %d)\n",
				cfg.Backend.Name, cfg.Launch.Policy, cfg.Launch.GroupSize)

			result := doctor.Run(cmd.Context(), doctor.Config{
				Engine:         e,
				RequireBackend: requireBackend,
				CPUFeatures:    cpu.Features,
				KernelFiles:    kernelFiles,
				SkipSmoke:      skipSmoke,
			}, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&requireBackend, "require-backend", false, "Fail when no compute backend is available")
	cmd.Flags().StringSliceVar(&kernelFiles, "kernel-file", nil, "External kernel document to check for entry points (repeatable)")
	cmd.Flags().BoolVar(&skipSmoke, "skip-smoke", false, "Do not run kernels")

	return cmd
}

package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/example/go-raggedpool/internal/bench"
)

func newBenchCmd() *cobra.Command {
	var (
		op         string
		runs       int
		format     string
		progress   bool
		threshold  float64
		workload   = bench.DefaultWorkload("sum")
		groupSizes []int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark a pooling or hash operation on a random ragged batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(bench.Ops, op) {
				return fmt.Errorf("--op must be one of %v", bench.Ops)
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			e, _, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			if !e.Available() {
				return fmt.Errorf("bench needs a compute backend; %s is unavailable", e.Backend().Name())
			}

			workload.Op = op
			if len(groupSizes) == 0 {
				groupSizes = []int{e.Planner().GroupSize()}
			}

			var all []bench.RunResult
			for _, gs := range groupSizes {
				sized, err := e.WithGroupSize(gs)
				if err != nil {
					return err
				}

				var onRun func(bench.RunResult)
				if progress {
					bar := progressbar.NewOptions(runs,
						progressbar.OptionSetDescription(fmt.Sprintf("%s group=%d", op, gs)),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionShowIts(),
						progressbar.OptionSetItsString("runs"),
						progressbar.OptionSetTheme(progressbar.ThemeASCII),
						progressbar.OptionClearOnFinish(),
					)
					onRun = func(bench.RunResult) { _ = bar.Add(1) }
				}

				results, err := bench.Run(cmd.Context(), sized, workload, runs, onRun)
				if err != nil {
					return err
				}

				if len(groupSizes) > 1 {
					_, _ = fmt.Fprintf(os.Stdout, "group size %d\n", gs)
				}
				stats := bench.ComputeStats(bench.Durations(results))
				switch format {
				case "json":
					bench.FormatJSON(results, stats, os.Stdout)
				default:
					bench.FormatTable(results, stats, os.Stdout)
				}
				all = append(all, results...)
			}

			return bench.CheckThroughputThreshold(bench.MeanThroughput(all), threshold)
		},
	}

	cmd.Flags().StringVar(&op, "op", "sum", fmt.Sprintf("Operation: %v", bench.Ops))
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar on stderr")
	cmd.Flags().Float64Var(&threshold, "min-throughput", 0, "Exit non-zero if mean items/s falls below this value (0 = disabled)")
	cmd.Flags().IntVar(&workload.Batch, "batch", workload.Batch, "Batch items (keys for hash)")
	cmd.Flags().IntVar(&workload.MaxLen, "max-len", workload.MaxLen, "Max rows per item")
	cmd.Flags().IntVar(&workload.Width, "width", workload.Width, "Feature width")
	cmd.Flags().IntVar(&workload.Pieces, "pieces", workload.Pieces, "Maxout pieces")
	cmd.Flags().Uint64Var(&workload.Seed, "seed", workload.Seed, "Workload RNG seed")
	cmd.Flags().IntSliceVar(&groupSizes, "sweep-group-size", nil, "Run once per group size (default: configured group size)")

	return cmd
}

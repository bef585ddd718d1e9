package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"simbench/internal/collector"
	"simbench/internal/simnet"
)

type latencyOptions struct {
	preset string
	seed   uint64
	count  int
	raw    bool
}

func newLatencyCmd() *cobra.Command {
	opts := &latencyOptions{}
	cmd := &cobra.Command{
		Use:   "latency",
		Short: "Sample a latency preset",
		Long: `Draws samples from a preset's default latency distribution. The same
seed always prints the same samples.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.count < 1 {
				return &exitError{code: ExitError, err: fmt.Errorf("-n must be at least 1, got %d", opts.count)}
			}
			sim, err := simnet.Preset(opts.preset)
			if err != nil {
				return &exitError{code: ExitError, err: err}
			}
			model := simnet.NewLatencyModel(sim.Net.Latency, opts.seed)
			samples := make([]time.Duration, opts.count)
			out := cmd.OutOrStdout()
			for i := range samples {
				samples[i] = model.Sample()
				if opts.raw {
					fmt.Fprintln(out, samples[i])
				}
			}
			if opts.raw {
				return nil
			}
			m := collector.ComputeDurationMetrics(samples)
			fmt.Fprintf(out, "preset=%s seed=%d samples=%d\n", opts.preset, opts.seed, opts.count)
			fmt.Fprintf(out, "  min=%v avg=%v p50=%v p99=%v max=%v\n", m.Min, m.Avg, m.P50, m.P99, m.Max)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.preset, "preset", "wan_latency_50ms", "latency preset name")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed")
	f.IntVarP(&opts.count, "count", "n", 1000, "number of samples")
	f.BoolVar(&opts.raw, "raw", false, "print every sample instead of a summary")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"pingmonitor/internal/measure"
	"pingmonitor/internal/metrics"
	"pingmonitor/internal/models"
	"pingmonitor/internal/resolver"
)

// batteryStep is one fixed diagnostic measurement.
type batteryStep struct {
	Name  string
	Host  string
	Count int
}

var battery = []batteryStep{
	{Name: "ping 8.8.8.8", Host: "8.8.8.8", Count: 1},
	{Name: "ping google.com", Host: "google.com", Count: 1},
	{Name: "ping an invalid host", Host: "invalid.host.that.does.not.exist.test", Count: 1},
	{Name: "ping 8.8.8.8 (count=3)", Host: "8.8.8.8", Count: 3},
	{Name: "ping 1.1.1.1", Host: "1.1.1.1", Count: 1},
}

func newPingCmd(opts *rootOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "ping HOST",
		Short: "Measure a host once and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			aggregator, err := buildAggregator(opts.cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			m := aggregator.Measure(ctx, args[0], count)
			printMeasurement(cmd.OutOrStdout(), m)
			if !m.Reachable {
				return fmt.Errorf("%s is unreachable", args[0])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 1, "number of probes to average")
	return cmd
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve HOST...",
		Short: "Resolve hosts to IPv4 addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := resolveAll(cmd.Context(), cmd.OutOrStdout(), buildResolver(opts.cfg), args)
			if failed > 0 {
				return fmt.Errorf("%d of %d hosts did not resolve", failed, len(args))
			}
			return nil
		},
	}
}

func newBatteryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "battery",
		Short: "Run the fixed diagnostic ping battery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			aggregator, err := buildAggregator(opts.cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res := resolveAll(ctx, cmd.OutOrStdout(), buildResolver(opts.cfg), []string{"google.com"})
			runBattery(ctx, cmd.OutOrStdout(), aggregator, battery)
			if res > 0 {
				return fmt.Errorf("resolution check failed")
			}
			return nil
		},
	}
}

func resolveAll(ctx context.Context, w io.Writer, r resolver.Resolver, hosts []string) int {
	failed := 0
	for _, host := range hosts {
		addr, err := r.Resolve(ctx, host)
		if err != nil {
			fmt.Fprintf(w, "FAIL  %s: %v\n", host, err)
			failed++
			continue
		}
		fmt.Fprintf(w, "OK    %s -> %s\n", host, addr)
	}
	return failed
}

// runBattery measures every step in order and reports how many were reachable.
func runBattery(ctx context.Context, w io.Writer, m measure.Measurer, steps []batteryStep) int {
	reachable := 0
	for i, step := range steps {
		if ctx.Err() != nil {
			fmt.Fprintln(w, "interrupted")
			break
		}
		fmt.Fprintf(w, "\nStep %d: %s\n", i+1, step.Name)
		result := m.Measure(ctx, step.Host, step.Count)
		printMeasurement(w, result)
		if result.Reachable {
			reachable++
		}
	}
	fmt.Fprintf(w, "\n%d of %d steps reachable\n", reachable, len(steps))
	return reachable
}

func printMeasurement(w io.Writer, m models.Measurement) {
	band := metrics.Classify(&m)
	if latency, ok := m.Latency(); ok {
		fmt.Fprintf(w, "%-8s %s reachable, %.1f ms\n", band, m.Host, latency)
		return
	}
	fmt.Fprintf(w, "%-8s %s unreachable\n", band, m.Host)
}

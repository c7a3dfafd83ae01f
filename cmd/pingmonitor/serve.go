package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pingmonitor/internal/logging"
	"pingmonitor/internal/monitor"
	"pingmonitor/internal/realtime"
	"pingmonitor/internal/server"
	"pingmonitor/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.ListenAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "address for the web server (overrides listen_addr)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	log := logging.WithPrefix("main")
	cfg := opts.cfg

	fs := afero.NewOsFs()
	hosts, err := storage.NewHostStorage(fs, cfg.HostsFile())
	if err != nil {
		return fmt.Errorf("initialise host storage: %w", err)
	}
	recent, err := storage.NewHistoryStorage(fs, cfg.HistoryFile())
	if err != nil {
		return fmt.Errorf("initialise history storage: %w", err)
	}

	aggregator, err := buildAggregator(cfg)
	if err != nil {
		return err
	}

	broker := realtime.NewBroker()
	svc, err := monitor.New(monitor.Options{
		Measurer:      aggregator,
		Hosts:         hosts,
		History:       recent,
		Broker:        broker,
		Workers:       cfg.Scheduler.Workers,
		OnDemandCount: cfg.OnDemand.Count,
		HistorySize:   cfg.OnDemand.HistorySize,
	})
	if err != nil {
		return err
	}

	seeds := make([]monitor.Seed, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		seeds = append(seeds, monitor.Seed{Host: h.Host, Interval: h.Interval.Std(), Enabled: h.IsEnabled()})
	}
	if n := svc.SeedIfEmpty(seeds); n > 0 {
		log.WithField("hosts", n).Info("seeded hosts from configuration")
	}
	svc.Start()

	srv := server.New(cfg.ListenAddr, svc, broker)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		broker.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("server shutdown: %v", err)
		}
		return nil
	})

	runErr := g.Wait()
	if err := svc.Stop(); err != nil {
		log.Errorf("stop monitor: %v", err)
		if runErr == nil {
			runErr = err
		}
	}
	log.Info("stopped")
	return runErr
}

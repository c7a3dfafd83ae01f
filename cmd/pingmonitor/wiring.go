package main

import (
	"fmt"

	"pingmonitor/internal/config"
	"pingmonitor/internal/measure"
	"pingmonitor/internal/prober"
	"pingmonitor/internal/resolver"
)

func buildResolver(cfg config.Config) resolver.Resolver {
	var r resolver.Resolver
	switch cfg.Resolver.Mode {
	case config.ResolverDNS:
		r = resolver.NewDNS(cfg.Resolver.Nameservers, cfg.Resolver.Timeout.Std())
	default:
		r = resolver.NewSystem()
	}
	return resolver.NewCached(r, cfg.Resolver.CacheTTL.Std())
}

func buildProber(cfg config.Config) (prober.Prober, error) {
	p, err := prober.New(prober.Options{
		Transport:  cfg.Probe.Transport,
		HardLimit:  cfg.Probe.HardLimit.Std(),
		Privileged: cfg.Probe.Privileged,
		Source:     cfg.Probe.Source,
		ExecPath:   cfg.Probe.ExecPath,
		TCPPort:    cfg.Probe.TCPPort,
	})
	if err != nil {
		return nil, fmt.Errorf("build prober: %w", err)
	}
	return p, nil
}

func buildAggregator(cfg config.Config) (*measure.Aggregator, error) {
	p, err := buildProber(cfg)
	if err != nil {
		return nil, err
	}
	return measure.New(buildResolver(cfg), p,
		measure.WithTimeout(cfg.Probe.Timeout.Std()),
		measure.WithSpacing(cfg.Probe.Spacing.Std()),
	), nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"pingmonitor/internal/history"
	"pingmonitor/internal/models"
	"pingmonitor/internal/prober"
)

// EnvPrefix prefixes every environment override, e.g. PINGMONITOR_LISTEN_ADDR.
const EnvPrefix = "PINGMONITOR"

// Resolver modes.
const (
	ResolverSystem = "system"
	ResolverDNS    = "dns"
)

// Config represents configuration data for the monitoring service.
type Config struct {
	ListenAddr    string          `yaml:"listen_addr"`
	DataDirectory string          `yaml:"data_directory"`
	LogLevel      string          `yaml:"log_level"`
	LogFormat     string          `yaml:"log_format"`
	Probe         ProbeConfig     `yaml:"probe"`
	Resolver      ResolverConfig  `yaml:"resolver"`
	Scheduler     SchedulerConfig `yaml:"scheduler"`
	OnDemand      OnDemandConfig  `yaml:"on_demand"`
	Hosts         []HostConfig    `yaml:"hosts"`
}

// ProbeConfig selects the probe transport and its timing.
type ProbeConfig struct {
	Transport  string          `yaml:"transport"`
	Timeout    models.Duration `yaml:"timeout"`
	HardLimit  models.Duration `yaml:"hard_limit"`
	Spacing    models.Duration `yaml:"spacing"`
	Privileged bool            `yaml:"privileged"`
	Source     string          `yaml:"source"`
	ExecPath   string          `yaml:"exec_path"`
	TCPPort    int             `yaml:"tcp_port"`
}

// ResolverConfig selects how host names become addresses.
type ResolverConfig struct {
	Mode        string          `yaml:"mode"`
	Nameservers []string        `yaml:"nameservers"`
	Timeout     models.Duration `yaml:"timeout"`
	CacheTTL    models.Duration `yaml:"cache_ttl"`
}

// SchedulerConfig bounds scheduled work.
type SchedulerConfig struct {
	Workers int `yaml:"workers"`
}

// OnDemandConfig configures user-submitted measurements.
type OnDemandConfig struct {
	Count       int `yaml:"count"`
	HistorySize int `yaml:"history_size"`
}

// HostConfig is a host seeded into an empty registry.
type HostConfig struct {
	Host     string          `yaml:"host"`
	Interval models.Duration `yaml:"interval"`
	Enabled  *bool           `yaml:"enabled"`
}

// IsEnabled reports the enabled flag, which defaults to true.
func (h HostConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// overrides are the settings that can be changed from the environment.
type overrides struct {
	ListenAddr    string        `envconfig:"LISTEN_ADDR"`
	DataDirectory string        `envconfig:"DATA_DIRECTORY"`
	LogLevel      string        `envconfig:"LOG_LEVEL"`
	LogFormat     string        `envconfig:"LOG_FORMAT"`
	Transport     string        `envconfig:"PROBE_TRANSPORT"`
	Timeout       time.Duration `envconfig:"PROBE_TIMEOUT"`
	Privileged    bool          `envconfig:"PROBE_PRIVILEGED"`
	ResolverMode  string        `envconfig:"RESOLVER_MODE"`
	Nameservers   []string      `envconfig:"RESOLVER_NAMESERVERS"`
	CacheTTL      time.Duration `envconfig:"RESOLVER_CACHE_TTL"`
	Workers       int           `envconfig:"SCHEDULER_WORKERS"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":8080",
		DataDirectory: filepath.Join(".dist", "data"),
		LogFormat:     "text",
		Probe: ProbeConfig{
			Transport: prober.TransportICMP,
			Timeout:   models.Duration(prober.DefaultTimeout),
			HardLimit: models.Duration(prober.DefaultHardLimit),
			Spacing:   models.Duration(500 * time.Millisecond),
			TCPPort:   prober.DefaultTCPPort,
		},
		Resolver: ResolverConfig{
			Mode:     ResolverSystem,
			Timeout:  models.Duration(2 * time.Second),
			CacheTTL: models.Duration(time.Minute),
		},
		Scheduler: SchedulerConfig{Workers: 8},
		OnDemand:  OnDemandConfig{Count: 1, HistorySize: history.DefaultCapacity},
	}
}

// Load reads configuration from yaml file. Missing files fall back to
// defaults. Environment overrides are applied last, then the result is
// validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	env := overrides{
		ListenAddr:    cfg.ListenAddr,
		DataDirectory: cfg.DataDirectory,
		LogLevel:      cfg.LogLevel,
		LogFormat:     cfg.LogFormat,
		Transport:     cfg.Probe.Transport,
		Timeout:       cfg.Probe.Timeout.Std(),
		Privileged:    cfg.Probe.Privileged,
		ResolverMode:  cfg.Resolver.Mode,
		Nameservers:   cfg.Resolver.Nameservers,
		CacheTTL:      cfg.Resolver.CacheTTL.Std(),
		Workers:       cfg.Scheduler.Workers,
	}
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}
	cfg.ListenAddr = env.ListenAddr
	cfg.DataDirectory = env.DataDirectory
	cfg.LogLevel = env.LogLevel
	cfg.LogFormat = env.LogFormat
	cfg.Probe.Transport = env.Transport
	cfg.Probe.Timeout = models.Duration(env.Timeout)
	cfg.Probe.Privileged = env.Privileged
	cfg.Resolver.Mode = env.ResolverMode
	cfg.Resolver.Nameservers = env.Nameservers
	cfg.Resolver.CacheTTL = models.Duration(env.CacheTTL)
	cfg.Scheduler.Workers = env.Workers
	return nil
}

func (c *Config) normalize() {
	defaults := DefaultConfig()
	if c.DataDirectory == "" {
		c.DataDirectory = defaults.DataDirectory
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaults.LogFormat
	}
	c.Probe.Transport = strings.ToLower(strings.TrimSpace(c.Probe.Transport))
	if c.Probe.Transport == "" {
		c.Probe.Transport = defaults.Probe.Transport
	}
	if c.Probe.Timeout <= 0 {
		c.Probe.Timeout = defaults.Probe.Timeout
	}
	if c.Probe.HardLimit <= 0 {
		c.Probe.HardLimit = defaults.Probe.HardLimit
	}
	c.Resolver.Mode = strings.ToLower(strings.TrimSpace(c.Resolver.Mode))
	if c.Resolver.Mode == "" {
		c.Resolver.Mode = defaults.Resolver.Mode
	}
	if c.Resolver.Timeout <= 0 {
		c.Resolver.Timeout = defaults.Resolver.Timeout
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = defaults.Scheduler.Workers
	}
	if c.OnDemand.Count <= 0 {
		c.OnDemand.Count = defaults.OnDemand.Count
	}
	if c.OnDemand.HistorySize <= 0 {
		c.OnDemand.HistorySize = defaults.OnDemand.HistorySize
	}
}

// Validate reports every problem in the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
		}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		result = multierror.Append(result, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}

	switch c.Probe.Transport {
	case prober.TransportICMP, prober.TransportExec, prober.TransportTCP:
	default:
		result = multierror.Append(result, fmt.Errorf("probe.transport %q is not one of icmp, exec, tcp", c.Probe.Transport))
	}
	if c.Probe.HardLimit < c.Probe.Timeout {
		result = multierror.Append(result, fmt.Errorf("probe.hard_limit %s is shorter than probe.timeout %s", c.Probe.HardLimit, c.Probe.Timeout))
	}
	if c.Probe.Spacing < 0 {
		result = multierror.Append(result, errors.New("probe.spacing must not be negative"))
	}
	if c.Probe.TCPPort < 0 || c.Probe.TCPPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("probe.tcp_port %d is out of range", c.Probe.TCPPort))
	}

	switch c.Resolver.Mode {
	case ResolverSystem:
	case ResolverDNS:
		if len(c.Resolver.Nameservers) == 0 {
			result = multierror.Append(result, errors.New("resolver.nameservers is required in dns mode"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("resolver.mode %q is not one of system, dns", c.Resolver.Mode))
	}
	if c.Resolver.CacheTTL < 0 {
		result = multierror.Append(result, errors.New("resolver.cache_ttl must not be negative"))
	}

	for i, h := range c.Hosts {
		if _, err := models.ValidateHostInput(h.Host, h.Interval.Std()); err != nil {
			result = multierror.Append(result, fmt.Errorf("hosts[%d]: %w", i, err))
		}
	}
	return result.ErrorOrNil()
}

// HostsFile is where the monitored host list is stored.
func (c Config) HostsFile() string {
	return filepath.Join(c.DataDirectory, "hosts.json")
}

// HistoryFile is where the on-demand history is stored.
func (c Config) HistoryFile() string {
	return filepath.Join(c.DataDirectory, "history.json")
}

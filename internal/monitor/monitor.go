// Package monitor is the coordinator that ties the registry, the scheduler
// and the on-demand controller together.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pingmonitor/internal/history"
	"pingmonitor/internal/logging"
	"pingmonitor/internal/measure"
	"pingmonitor/internal/metrics"
	"pingmonitor/internal/models"
	"pingmonitor/internal/ondemand"
	"pingmonitor/internal/realtime"
	"pingmonitor/internal/registry"
	"pingmonitor/internal/scheduler"
)

var logger = logging.WithPrefix("monitor")

// HostStore persists the monitored host list.
type HostStore interface {
	Load() ([]models.HostEntry, error)
	Save(entries []models.HostEntry) error
}

// HistoryStore persists the on-demand history.
type HistoryStore interface {
	Load() ([]string, error)
	Save(hosts []string) error
}

// Options configures a Service. Hosts, History and Broker are optional.
type Options struct {
	Measurer      measure.Measurer
	Hosts         HostStore
	History       HistoryStore
	Broker        *realtime.Broker
	Workers       int
	OnDemandCount int
	HistorySize   int
}

// Seed is a host added on first start when nothing is stored yet.
type Seed struct {
	Host     string
	Interval time.Duration
	Enabled  bool
}

// HostView is a host entry with its rendered band.
type HostView struct {
	models.HostEntry
	Band metrics.Band `json:"band"`
}

// Snapshot is the full state the presentation layer renders.
type Snapshot struct {
	Hosts       []HostView          `json:"monitored_hosts"`
	Current     *models.Measurement `json:"current_result,omitempty"`
	CurrentBand metrics.Band        `json:"current_band"`
	Pinging     bool                `json:"is_pinging"`
	History     []string            `json:"history"`
	Summary     metrics.Summary     `json:"summary"`
}

// Service owns the monitoring state. Structural changes to the host set
// (add, remove, update) are serialised, and each one is followed by a
// scheduler rebuild and a save before the next change starts.
type Service struct {
	mu sync.Mutex

	registry   *registry.Registry
	scheduler  *scheduler.Scheduler
	controller *ondemand.Controller
	hosts      HostStore
	broker     *realtime.Broker
}

// New loads stored state and assembles the service. Call Start to begin
// scheduled measurements.
func New(opts Options) (*Service, error) {
	if opts.Measurer == nil {
		return nil, fmt.Errorf("monitor: measurer is required")
	}

	s := &Service{
		registry: registry.New(),
		hosts:    opts.Hosts,
		broker:   opts.Broker,
	}

	if s.hosts != nil {
		entries, err := s.hosts.Load()
		if err != nil {
			return nil, fmt.Errorf("load hosts: %w", err)
		}
		for _, bad := range s.registry.Replace(entries) {
			logger.WithFields(logrus.Fields{"id": bad.ID, "host": bad.Host}).Warn("dropping invalid stored host")
		}
	}

	var recent []string
	if opts.History != nil {
		loaded, err := opts.History.Load()
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		recent = loaded
	}

	s.controller = ondemand.New(opts.Measurer, ondemand.Options{
		Count:    opts.OnDemandCount,
		History:  history.NewRecent(opts.HistorySize, recent),
		Store:    opts.History,
		OnChange: s.onDemandChanged,
	})
	s.scheduler = scheduler.New(s.registry, opts.Measurer, scheduler.Options{
		Workers:  opts.Workers,
		OnResult: s.resultWritten,
	})
	return s, nil
}

// Start begins scheduled measurements for every enabled entry.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Start()
	s.scheduler.Rebuild(s.registry.Entries())
	logger.WithField("hosts", s.registry.Len()).Info("monitor started")
}

// Stop halts scheduled and on-demand work and saves the final host state,
// including the last results.
func (s *Service) Stop() error {
	s.scheduler.Stop()
	s.controller.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hosts == nil {
		return nil
	}
	if err := s.hosts.Save(s.registry.Entries()); err != nil {
		return fmt.Errorf("save hosts: %w", err)
	}
	return nil
}

// SeedIfEmpty adds seeds when the registry holds no entries and reports how
// many were added. Invalid seeds are skipped with a warning.
func (s *Service) SeedIfEmpty(seeds []Seed) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.Len() > 0 || len(seeds) == 0 {
		return 0
	}
	added := 0
	for _, seed := range seeds {
		entry, err := s.registry.Add(seed.Host, seed.Interval)
		if err != nil {
			logger.WithField("host", seed.Host).Warnf("skipping seed host: %v", err)
			continue
		}
		if !seed.Enabled {
			entry.Enabled = false
			if _, err := s.registry.Update(entry); err != nil {
				logger.WithField("host", seed.Host).Warnf("disable seed host: %v", err)
			}
		}
		added++
	}
	if added > 0 {
		s.structuralChangeLocked()
	}
	return added
}

// AddMonitoredHost validates and adds a host on its own schedule.
func (s *Service) AddMonitoredHost(host string, interval time.Duration) (models.HostEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.registry.Add(host, interval)
	if err != nil {
		return models.HostEntry{}, err
	}
	logger.WithFields(logrus.Fields{"id": entry.ID, "host": entry.Host, "interval": entry.Interval.String()}).Info("host added")
	s.structuralChangeLocked()
	return entry, nil
}

// RemoveMonitoredHost removes the entry with id and reports whether it existed.
func (s *Service) RemoveMonitoredHost(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registry.Remove(id) {
		return false
	}
	logger.WithField("id", id).Info("host removed")
	s.structuralChangeLocked()
	return true
}

// UpdateMonitoredHost replaces the host, interval and enabled flag of an
// existing entry. The last result is kept. It returns false for an unknown ID.
func (s *Service) UpdateMonitoredHost(entry models.HostEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.registry.Lookup(entry.ID)
	if !ok {
		return false, nil
	}
	entry.LastResult = current.LastResult
	ok, err := s.registry.Update(entry)
	if err != nil || !ok {
		return ok, err
	}
	logger.WithFields(logrus.Fields{"id": entry.ID, "host": entry.Host, "enabled": entry.Enabled}).Info("host updated")
	s.structuralChangeLocked()
	return true, nil
}

// Lookup returns the entry with id.
func (s *Service) Lookup(id string) (models.HostEntry, bool) {
	return s.registry.Lookup(id)
}

// Hosts returns the monitored hosts with their bands.
func (s *Service) Hosts() []HostView {
	return views(s.registry.Entries())
}

// Submit starts an on-demand measurement.
func (s *Service) Submit(host string) error {
	return s.controller.Submit(host)
}

// Snapshot returns the current state.
func (s *Service) Snapshot() Snapshot {
	entries := s.registry.Entries()
	state := s.controller.State()
	return Snapshot{
		Hosts:       views(entries),
		Current:     state.Current,
		CurrentBand: metrics.Classify(state.Current),
		Pinging:     state.Pinging,
		History:     state.History,
		Summary:     metrics.Summarize(entries),
	}
}

// structuralChangeLocked rebuilds the timers from the latest registry
// snapshot, saves it and tells subscribers. s.mu must be held.
func (s *Service) structuralChangeLocked() {
	entries := s.registry.Entries()
	s.scheduler.Rebuild(entries)
	if s.hosts != nil {
		if err := s.hosts.Save(entries); err != nil {
			logger.Errorf("save hosts: %v", err)
		}
	}
	s.publish(realtime.Event{Type: realtime.EventHosts, Payload: views(entries)})
}

func (s *Service) resultWritten(id string, m models.Measurement) {
	entry, ok := s.registry.Lookup(id)
	if !ok {
		return
	}
	s.publish(realtime.Event{Type: realtime.EventResult, ID: id, Payload: view(entry)})
}

func (s *Service) onDemandChanged(state ondemand.State) {
	s.publish(realtime.Event{Type: realtime.EventOnDemand, Payload: state})
}

func (s *Service) publish(evt realtime.Event) {
	if s.broker != nil {
		s.broker.Publish(evt)
	}
}

func view(e models.HostEntry) HostView {
	return HostView{HostEntry: e, Band: metrics.Classify(e.LastResult)}
}

func views(entries []models.HostEntry) []HostView {
	out := make([]HostView, len(entries))
	for i, e := range entries {
		out[i] = view(e)
	}
	return out
}

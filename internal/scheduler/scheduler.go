// Package scheduler runs one repeating timer per enabled host entry.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"pingmonitor/internal/logging"
	"pingmonitor/internal/measure"
	"pingmonitor/internal/models"
)

var logger = logging.WithPrefix("scheduler")

// DefaultWorkers bounds how many scheduled measurements run at once.
const DefaultWorkers = 8

// ErrStopped is returned by Fire once the scheduler has been stopped.
var ErrStopped = errors.New("scheduler stopped")

// Store is the view of the registry the fire handler needs.
type Store interface {
	Lookup(id string) (models.HostEntry, bool)
	SetLastResult(id string, m models.Measurement) bool
}

// ResultFunc is called after a measurement has been written back.
type ResultFunc func(id string, m models.Measurement)

// Options configures a Scheduler.
type Options struct {
	Workers  int
	OnResult ResultFunc
}

// Scheduler keeps a timer per enabled entry, keyed by entry ID. Timers only
// carry the ID; the entry is looked up again when the timer fires.
type Scheduler struct {
	store    Store
	measurer measure.Measurer
	onResult ResultFunc

	cron *cron.Cron
	pool *tunny.Pool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[string]cron.EntryID
	busy    map[string]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New creates a scheduler. Call Start to begin firing timers.
func New(store Store, measurer measure.Measurer, opts Options) *Scheduler {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:    store,
		measurer: measurer,
		onResult: opts.OnResult,
		cron:     cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger))),
		ctx:      ctx,
		cancel:   cancel,
		timers:   make(map[string]cron.EntryID),
		busy:     make(map[string]struct{}),
	}
	s.pool = tunny.NewFunc(workers, func(payload interface{}) interface{} {
		return s.measurer.Measure(s.ctx, payload.(string), 1)
	})
	return s
}

// Start begins firing timers.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Debug("started")
}

// Stop removes every timer, cancels in-flight measurements and waits for
// running fire handlers before releasing the worker pool.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, entryID := range s.timers {
		s.cron.Remove(entryID)
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.pool.Close()
	logger.Info("stopped")
}

// Rebuild discards every timer and schedules one for each enabled entry.
func (s *Scheduler) Rebuild(entries []models.HostEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.timers {
		s.cron.Remove(entryID)
		delete(s.timers, id)
	}
	if s.stopped {
		return
	}

	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		id := entry.ID
		interval := entry.Interval.Std()
		if interval < models.MinInterval {
			interval = models.MinInterval
		}
		s.timers[id] = s.cron.Schedule(every(interval), cron.FuncJob(func() {
			_ = s.Fire(id)
		}))
	}
	logger.WithFields(logrus.Fields{"entries": len(entries), "timers": len(s.timers)}).Debug("timers rebuilt")
}

// every fires a fixed interval after the previous activation. Unlike
// cron.Every it keeps sub-second precision and is not aligned to the
// wall-clock second, so the first fire comes a full interval after scheduling.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// Active returns the sorted IDs that currently have a timer.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fire runs one scheduled measurement for id. It is what every timer calls.
// An entry that no longer exists is ignored, and a fire for an entry whose
// previous measurement is still running is skipped.
func (s *Scheduler) Fire(id string) error {
	if began, err := s.begin(id); !began {
		return err
	}
	defer s.end(id)

	log := logger.WithField("id", id)

	entry, ok := s.store.Lookup(id)
	if !ok {
		log.Debug("entry removed before fire, skipping")
		return nil
	}

	started := time.Now()
	res, err := s.pool.ProcessCtx(s.ctx, entry.Host)
	if err != nil {
		log.WithField("host", entry.Host).Debugf("measurement abandoned: %v", err)
		return ErrStopped
	}
	m := res.(models.Measurement)

	if !s.store.SetLastResult(id, m) {
		log.WithField("host", entry.Host).Debug("entry removed while measuring, result dropped")
		return nil
	}
	fields := logrus.Fields{"host": entry.Host, "reachable": m.Reachable, "took": time.Since(started).Round(time.Millisecond)}
	if latency, ok := m.Latency(); ok {
		fields["latency_ms"] = latency
	}
	log.WithFields(fields).Debug("scheduled measurement complete")

	if s.onResult != nil {
		s.onResult(id, m)
	}
	return nil
}

// begin marks id busy. It refuses when the scheduler is stopped or a fire
// for id is already in flight.
func (s *Scheduler) begin(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false, ErrStopped
	}
	if _, running := s.busy[id]; running {
		logger.WithField("id", id).Debug("previous measurement still running, skipping fire")
		return false, nil
	}
	s.busy[id] = struct{}{}
	s.wg.Add(1)
	return true, nil
}

func (s *Scheduler) end(id string) {
	s.mu.Lock()
	delete(s.busy, id)
	s.mu.Unlock()
	s.wg.Done()
}

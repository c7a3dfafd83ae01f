// Package ondemand drives measurements requested directly by the user.
package ondemand

import (
	"context"
	"strings"
	"sync"

	"pingmonitor/internal/history"
	"pingmonitor/internal/logging"
	"pingmonitor/internal/measure"
	"pingmonitor/internal/models"
)

var logger = logging.WithPrefix("ondemand")

// ErrEmptyHost rejects a submission without a host. It matches models.ErrValidation.
var ErrEmptyHost = &models.ValidationError{Field: "host", Message: "must not be empty"}

// HistoryStore persists the recent-host list.
type HistoryStore interface {
	Save(hosts []string) error
}

// State is what the presentation layer renders.
type State struct {
	Pinging bool                `json:"is_pinging"`
	Current *models.Measurement `json:"current_result,omitempty"`
	History []string            `json:"history"`
}

// Options configures a Controller.
type Options struct {
	// Count is the number of probes per submission; 1 when unset.
	Count    int
	History  *history.Recent
	Store    HistoryStore
	OnChange func(State)
}

// Controller is a two-state machine: Idle until a submission is accepted,
// Pinging until every accepted submission has completed. The most recently
// completed measurement becomes the current result.
type Controller struct {
	measurer measure.Measurer
	count    int
	history  *history.Recent
	store    HistoryStore
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc

	saveMu sync.Mutex

	mu       sync.Mutex
	inFlight int
	current  *models.Measurement
	wg       sync.WaitGroup
}

// New creates a Controller.
func New(measurer measure.Measurer, opts Options) *Controller {
	count := opts.Count
	if count < 1 {
		count = 1
	}
	recent := opts.History
	if recent == nil {
		recent = history.NewRecent(history.DefaultCapacity, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		measurer: measurer,
		count:    count,
		history:  recent,
		store:    opts.Store,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit starts a measurement for host. An empty host is rejected with
// ErrEmptyHost and changes nothing. The host is added to the history before
// the probe begins.
func (c *Controller) Submit(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return ErrEmptyHost
	}

	c.pushHistory(host)

	c.mu.Lock()
	c.inFlight++
	c.wg.Add(1)
	state := c.stateLocked()
	c.mu.Unlock()
	c.notify(state)

	logger.WithField("host", host).Debug("on-demand measurement started")
	go c.run(host)
	return nil
}

// pushHistory holds saveMu across push and save so saves land in push order.
func (c *Controller) pushHistory(host string) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	items := c.history.Push(host)
	if c.store == nil {
		return
	}
	if err := c.store.Save(items); err != nil {
		logger.WithField("host", host).Warnf("save history: %v", err)
	}
}

func (c *Controller) run(host string) {
	defer c.wg.Done()

	m := c.measurer.Measure(c.ctx, host, c.count)

	c.mu.Lock()
	c.current = &m
	c.inFlight--
	state := c.stateLocked()
	c.mu.Unlock()

	logger.WithField("host", host).WithField("reachable", m.Reachable).Debug("on-demand measurement finished")
	c.notify(state)
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Wait blocks until every accepted submission has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels running measurements and waits for them to finish.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) stateLocked() State {
	s := State{
		Pinging: c.inFlight > 0,
		History: c.history.Items(),
	}
	if c.current != nil {
		m := c.current.Clone()
		s.Current = &m
	}
	return s
}

func (c *Controller) notify(s State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

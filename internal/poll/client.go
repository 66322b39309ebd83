package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the tri-state connection indicator a consumer of the client
// sees. No raw error detail crosses this boundary: the consumer keeps its
// last successfully fetched data and watches the status.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

// A poll is declared disconnected (rather than merely reconnecting) from
// this many consecutive failures onward.
const disconnectedAfter = 3

// maxBackoffMultiplier caps the exponential backoff at 8× the base interval.
const maxBackoffMultiplier = 8

// PollFunc performs one poll. Whatever data it fetches is the caller's
// business; the client only cares about success or failure.
type PollFunc func(ctx context.Context) error

// Client drives a recurring poll loop with exponential backoff and
// visibility-based pause/resume.
//
// The loop is single-threaded cooperative: one timer drives one in-flight
// poll at a time, and a poll's completion is what schedules the next
// timer, so polls never overlap. Stopping or pausing does not abort an
// in-flight poll; any timeout must come from the underlying transport.
// Instances are fully independent; no shared backoff state.
type Client struct {
	poll     PollFunc
	base     time.Duration
	logger   *zap.Logger
	onError  func(err error, failures int)
	onStatus func(s Status)

	mu         sync.Mutex
	status     Status
	failures   int
	multiplier int
	paused     bool
	running    bool
	inFlight   bool
	lastPoll   time.Time
	timer      *time.Timer
}

// Config carries the client's constructor parameters. OnError and
// OnStatusChange are optional.
type Config struct {
	Poll           PollFunc
	BaseInterval   time.Duration
	OnError        func(err error, failures int)
	OnStatusChange func(s Status)
	Logger         *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.OnError == nil {
		cfg.OnError = func(error, int) {}
	}
	if cfg.OnStatusChange == nil {
		cfg.OnStatusChange = func(Status) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		poll:       cfg.Poll,
		base:       cfg.BaseInterval,
		logger:     cfg.Logger,
		onError:    cfg.OnError,
		onStatus:   cfg.OnStatusChange,
		status:     StatusConnected,
		multiplier: 1,
	}
}

// Start begins the loop with an immediate first poll.
func (c *Client) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()
	go c.cycle()
}

// Stop clears the timer and ends the loop. An in-flight poll runs to
// completion; its result is discarded for scheduling purposes.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Pause suspends network activity. The timer keeps firing so interval
// bookkeeping stays warm, but ticks while paused perform no poll.
func (c *Client) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume clears the pause. If the time since the last poll has reached the
// base interval, an immediate catch-up poll fires before the regular
// schedule resumes. This picks up state missed while a tab was hidden.
func (c *Client) Resume() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	catchUp := c.running && time.Since(c.lastPoll) >= c.base
	if catchUp && c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if catchUp {
		go c.cycle()
	}
}

// SetVisible maps page visibility onto the loop: hidden pauses, visible
// resumes. This is the sole cancellation mechanism for scheduled polls.
func (c *Client) SetVisible(visible bool) {
	if visible {
		c.Resume()
	} else {
		c.Pause()
	}
}

// GetStatus returns the current connection indicator.
func (c *Client) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// cycle performs one iteration of the loop: poll (unless paused), then
// schedule the next tick. It is the only place a timer is armed, which is
// what keeps polls from overlapping.
func (c *Client) cycle() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	if c.paused {
		c.scheduleLocked(c.base)
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.lastPoll = time.Now()
	c.mu.Unlock()

	err := c.poll(context.Background())
	c.observe(err)

	c.mu.Lock()
	c.inFlight = false
	if c.running {
		c.scheduleLocked(c.interval())
	}
	c.mu.Unlock()
}

// scheduleLocked arms the next tick. Caller holds the lock.
func (c *Client) scheduleLocked(d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, c.cycle)
}

// observe folds one poll result into the backoff state machine.
//
// Success resets everything. Each failure bumps the counter, doubles the
// multiplier (capped at 8), and degrades the status: reconnecting on the
// first failure, disconnected from the third onward. The error goes to the
// caller's hook with the failure count attached, never upward.
func (c *Client) observe(err error) {
	c.mu.Lock()
	var statusChanged bool
	var status Status
	var failures int

	if err == nil {
		c.failures = 0
		c.multiplier = 1
		statusChanged = c.status != StatusConnected
		c.status = StatusConnected
	} else {
		c.failures++
		failures = c.failures
		shift := c.failures - 1
		if shift > 3 {
			shift = 3 // 2^3 == maxBackoffMultiplier
		}
		c.multiplier = 1 << shift
		next := StatusReconnecting
		if c.failures >= disconnectedAfter {
			next = StatusDisconnected
		}
		statusChanged = c.status != next
		c.status = next
	}
	status = c.status
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("poll failed",
			zap.Int("consecutive_failures", failures),
			zap.Error(err))
		c.onError(err, failures)
	}
	if statusChanged {
		c.onStatus(status)
	}
}

// interval returns the effective delay before the next poll. Caller holds
// the lock.
func (c *Client) interval() time.Duration {
	return c.base * time.Duration(c.multiplier)
}

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

const (
	msgConnectFailed = "Failed to connect to the server"
	msgRetryFailed   = "Connection failed after multiple attempts. Please try again later."
)

// Sink receives everything the controller publishes. *market.Store
// satisfies it.
type Sink interface {
	ApplyPriceUpdate(u market.PriceUpdate)
	SetConnectionStatus(status market.ConnectionStatus)
	SetError(msg string)
}

// Config is the retry policy of a Controller.
type Config struct {
	// MaxAttempts is the number of consecutive failures tolerated before the
	// controller gives up.
	MaxAttempts int
	// RetryDelay is the fixed wait before each new attempt.
	RetryDelay time.Duration
}

// DefaultConfig returns a budget of 3 with a 3s delay.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, RetryDelay: 3 * time.Second}
}

// Events consumed by the dispatch loop. gen ties connection events to the
// attempt that produced them so late events from a torn-down connection are
// ignored.
type (
	event interface{ isEvent() }

	opened struct {
		gen  uint64
		conn Conn
	}
	connectFailed struct {
		gen uint64
		err error
	}
	closed struct {
		gen uint64
		err error
	}
	message struct {
		gen uint64
		raw []byte
	}
	retryDue struct {
		gen uint64
	}
	retryRequested struct{}
)

func (opened) isEvent()         {}
func (connectFailed) isEvent()  {}
func (closed) isEvent()         {}
func (message) isEvent()        {}
func (retryDue) isEvent()       {}
func (retryRequested) isEvent() {}

// link is the live physical connection and its reader goroutine.
type link struct {
	conn Conn
	quit chan struct{}
	done chan struct{}
}

// Controller keeps exactly one logical connection to the feed, forwards
// price updates to the Sink and reconnects under a bounded retry budget.
//
// All state below the events channel is owned by the Run goroutine.
type Controller struct {
	cfg    Config
	dialer Dialer
	sink   Sink
	logger *zap.Logger

	events  chan event
	stopped chan struct{}
	running sync.Once

	gen        uint64
	live       *link
	dialCancel context.CancelFunc
	retryGen   uint64
	retryTimer *time.Timer
	status     market.ConnectionStatus
	attempts   int

	// view mirrors status/attempts/lastErr for readers on other goroutines.
	viewMu      sync.RWMutex
	viewStatus  market.ConnectionStatus
	viewAttempt int
	viewPending bool
	lastErr     error
}

// NewController builds a controller. Nothing happens until Run.
func NewController(cfg Config, dialer Dialer, sink Sink, logger *zap.Logger) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Controller{
		cfg:        cfg,
		dialer:     dialer,
		sink:       sink,
		logger:     logger,
		events:     make(chan event, 256),
		stopped:    make(chan struct{}),
		status:     market.StatusDisconnected,
		viewStatus: market.StatusDisconnected,
	}
}

// Status returns the current connection status.
func (c *Controller) Status() market.ConnectionStatus {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.viewStatus
}

// Attempts returns the number of consecutive failures since the last
// successful connection.
func (c *Controller) Attempts() int {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.viewAttempt
}

// RetryPending reports whether a reconnection timer is scheduled.
func (c *Controller) RetryPending() bool {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.viewPending
}

// Err returns the error that put the controller into the failed state, or
// nil. It matches ErrRetryBudgetExhausted and ErrTransport.
func (c *Controller) Err() error {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.lastErr
}

// Retry restarts the cycle after the controller has given up: the budget is
// reset and a new attempt starts immediately. It is ignored while a
// connection is live or being retried.
func (c *Controller) Retry() {
	select {
	case c.events <- retryRequested{}:
	case <-c.stopped:
	}
}

// Run connects and dispatches events until ctx is cancelled. On return the
// pending retry timer is stopped and the connection is closed. Run may only
// be called once.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.running.Do(func() { started = true })
	if !started {
		return errors.New("client: controller already running")
	}
	defer close(c.stopped)

	c.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return nil
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case opened:
		c.onOpened(ev)
	case connectFailed:
		if ev.gen != c.gen {
			return
		}
		c.dialCancel = nil
		c.logger.Warn("connection error", zap.Error(ev.err))
		c.setStatus(market.StatusError)
		c.sink.SetError(msgConnectFailed)
		c.reconnect(&TransportError{Op: "dial", Err: ev.err})
	case closed:
		if ev.gen != c.gen || c.live == nil {
			return
		}
		c.logger.Info("disconnected", zap.Error(ev.err))
		c.closeLink()
		c.setStatus(market.StatusDisconnected)
		c.reconnect(&TransportError{Op: "read", Err: ev.err})
	case message:
		if ev.gen != c.gen {
			return
		}
		u, ok := market.DecodeUpdate(ev.raw)
		if !ok {
			c.logger.Debug("dropping undecodable frame", zap.Int("bytes", len(ev.raw)))
			return
		}
		c.sink.ApplyPriceUpdate(u)
	case retryDue:
		if ev.gen != c.retryGen || c.retryTimer == nil {
			return
		}
		c.retryTimer = nil
		c.setPending(false)
		c.connect(ctx)
	case retryRequested:
		if c.status != market.StatusFailed && c.status != market.StatusDisconnected {
			return
		}
		if c.retryTimer != nil || c.dialCancel != nil || c.live != nil {
			return
		}
		c.logger.Info("manual retry")
		c.attempts = 0
		c.setAttempts(0)
		c.setFailure(nil)
		c.sink.SetError("")
		c.connect(ctx)
	}
}

func (c *Controller) onOpened(ev opened) {
	if ev.gen != c.gen || c.live != nil {
		ev.conn.Close()
		return
	}
	c.dialCancel = nil

	l := &link{conn: ev.conn, quit: make(chan struct{}), done: make(chan struct{})}
	c.live = l
	go c.readLoop(ev.gen, l)

	c.attempts = 0
	c.setAttempts(0)
	c.setFailure(nil)
	c.sink.SetError("")
	c.setStatus(market.StatusConnected)
	c.logger.Info("connected")
}

// connect tears down any previous connection, then starts a new dial in the
// background. The result comes back as an opened or connectFailed event.
func (c *Controller) connect(ctx context.Context) {
	c.closeLink()

	c.gen++
	gen := c.gen
	c.setStatus(market.StatusConnecting)

	dctx, cancel := context.WithCancel(ctx)
	c.dialCancel = cancel
	go func() {
		defer cancel()
		conn, err := c.dialer.Dial(dctx)
		if err != nil {
			c.post(connectFailed{gen: gen, err: err}, nil)
			return
		}
		select {
		case c.events <- opened{gen: gen, conn: conn}:
		case <-c.stopped:
			conn.Close()
		}
	}()
}

// reconnect applies the retry policy after a failure.
func (c *Controller) reconnect(cause error) {
	var next market.ConnectionStatus
	c.attempts, next = afterFailure(c.attempts, c.cfg.MaxAttempts)
	c.setAttempts(c.attempts)

	// Status is published last so observers that see it also see the rest.
	if next == market.StatusFailed {
		c.setFailure(fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, c.attempts, cause))
		c.sink.SetError(msgRetryFailed)
		c.setStatus(market.StatusFailed)
		c.logger.Error("giving up on connection", zap.Int("attempts", c.attempts), zap.Error(cause))
		return
	}

	c.sink.SetError(fmt.Sprintf("Attempting to reconnect (%d/%d)...", c.attempts, c.cfg.MaxAttempts))
	c.logger.Info("scheduling reconnect",
		zap.Int("attempt", c.attempts),
		zap.Int("max_attempts", c.cfg.MaxAttempts),
		zap.Duration("delay", c.cfg.RetryDelay))

	c.retryGen++
	gen := c.retryGen
	c.retryTimer = time.AfterFunc(c.cfg.RetryDelay, func() {
		c.post(retryDue{gen: gen}, nil)
	})
	c.setPending(true)
	c.setStatus(market.StatusReconnecting)
}

// afterFailure is the retry policy: every failure counts against the budget,
// and the failure that uses up the budget is terminal.
func afterFailure(attempts, maxAttempts int) (int, market.ConnectionStatus) {
	if attempts < maxAttempts {
		attempts++
	}
	if attempts >= maxAttempts {
		return attempts, market.StatusFailed
	}
	return attempts, market.StatusReconnecting
}

// readLoop forwards frames until the connection fails or the link is torn
// down. done is closed when it has fully exited.
func (c *Controller) readLoop(gen uint64, l *link) {
	defer close(l.done)
	for {
		raw, err := l.conn.ReadMessage()
		if err != nil {
			c.post(closed{gen: gen, err: err}, l.quit)
			return
		}
		if !c.post(message{gen: gen, raw: raw}, l.quit) {
			return
		}
	}
}

// post delivers ev to the loop unless the controller or the link (quit) has
// stopped first.
func (c *Controller) post(ev event, quit <-chan struct{}) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.stopped:
		return false
	case <-quit:
		return false
	}
}

// closeLink closes the live connection and waits for its reader to exit.
func (c *Controller) closeLink() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.live == nil {
		return
	}
	l := c.live
	c.live = nil
	close(l.quit)
	l.conn.Close()
	<-l.done
}

func (c *Controller) teardown() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
		c.setPending(false)
	}
	c.closeLink()
	c.setStatus(market.StatusDisconnected)
	c.logger.Info("controller stopped")
}

func (c *Controller) setStatus(s market.ConnectionStatus) {
	c.status = s
	c.viewMu.Lock()
	c.viewStatus = s
	c.viewMu.Unlock()
	c.sink.SetConnectionStatus(s)
}

func (c *Controller) setAttempts(n int) {
	c.viewMu.Lock()
	c.viewAttempt = n
	c.viewMu.Unlock()
}

func (c *Controller) setPending(p bool) {
	c.viewMu.Lock()
	c.viewPending = p
	c.viewMu.Unlock()
}

func (c *Controller) setFailure(err error) {
	c.viewMu.Lock()
	c.lastErr = err
	c.viewMu.Unlock()
}

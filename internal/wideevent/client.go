package wideevent

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	applog "docledger/internal/log"
	"docledger/internal/storage"
)

var errNoTransport = errors.New("wideevent: transport not configured")

// Options configures a Client. Primary, Secondary and Beacon may be nil; a nil
// sender counts as a failed attempt and a nil Beacon makes Beacon fall back to
// the normal delivery chain.
type Options struct {
	Primary   Sender
	Secondary Sender
	Beacon    Beaconer

	// Store backs the durable queue. Nil disables queueing.
	Store         storage.Local
	QueueCapacity int

	Logger *applog.Logger
	Now    func() time.Time
	Random RandomSource
}

// Client owns the delivery chain, the durable queue and the process-wide
// lifecycle hooks shared by every Logger it creates. One Client is built at
// the composition root and passed to whatever needs to create loggers.
type Client struct {
	primary   Sender
	secondary Sender
	beacon    Beaconer
	queue     *Queue
	logger    *applog.Logger
	now       func() time.Time
	random    RandomSource

	sweepOnce  sync.Once
	unloadOnce sync.Once
	wg         sync.WaitGroup

	mu      sync.Mutex
	pending map[*Logger]struct{}
}

// NewClient builds a Client. It does no I/O; the retry sweep starts with the first New.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	random := opts.Random
	if random == nil {
		random = uuid.NewRandom
	}
	return &Client{
		primary:   opts.Primary,
		secondary: opts.Secondary,
		beacon:    opts.Beacon,
		queue:     NewQueue(opts.Store, opts.QueueCapacity),
		logger:    logger.WithComponent(applog.ComponentWideEvent),
		now:       now,
		random:    random,
		pending:   make(map[*Logger]struct{}),
	}
}

// New returns a logger for one unit of work. The first call on a Client also
// drains the durable queue and retries its events in the background.
//
// The Client keeps every logger whose lifecycle is open so Unload can beacon
// it. A logger that is abandoned without Flush, Beacon or Discard stays
// referenced until Unload.
func (c *Client) New() *Logger {
	guard(c.logger, applog.OpStartup, func() {
		c.sweepOnce.Do(c.startSweep)
	})
	l := &Logger{client: c}
	l.resetLocked()
	c.track(l)
	return l
}

// Queue exposes the durable queue, mainly for inspection.
func (c *Client) Queue() *Queue {
	return c.queue
}

// Unload beacons every logger whose current lifecycle has not been flushed.
// It acts once per Client; later calls do nothing.
func (c *Client) Unload() {
	c.unloadOnce.Do(func() {
		guard(c.logger, applog.OpBeacon, func() {
			loggers := c.pendingLoggers()
			c.logger.Debug("Unloading wide event client", "pending_loggers", len(loggers))
			for _, l := range loggers {
				l.Beacon()
			}
		})
	})
}

// WatchSignals calls Unload when ctx ends or the process gets SIGINT or SIGTERM.
func (c *Client) WatchSignals(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
		c.Unload()
	}()
}

// Wait blocks until the retry sweep and any FlushAsync deliveries finish.
// Beacons are not waited for.
func (c *Client) Wait() {
	c.wg.Wait()
}

// startSweep drains the queue synchronously, so nothing queued later in this
// process is mixed in, then retries the drained events against the primary
// endpoint only.
func (c *Client) startSweep() {
	ctx := context.Background()
	events := c.queue.Drain(ctx)
	if len(events) == 0 {
		return
	}

	c.logger.Info("Retrying queued wide events",
		applog.FieldOperation, applog.OpRetry,
		applog.FieldQueueLength, len(events))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		guard(c.logger, applog.OpRetry, func() {
			for _, event := range events {
				if err := send(ctx, c.primary, event); err != nil {
					c.enqueue(ctx, event)
				}
			}
		})
	}()
}

// deliver runs the primary, secondary, queue chain.
func (c *Client) deliver(ctx context.Context, event WideEvent) {
	err := send(ctx, c.primary, event)
	if err == nil {
		return
	}
	c.logger.Debug("Primary wide event delivery failed",
		applog.FieldTraceID, event.TraceID,
		applog.FieldTransport, "primary",
		applog.FieldError, err)

	err = send(ctx, c.secondary, event)
	if err == nil {
		return
	}
	c.logger.Debug("Secondary wide event delivery failed",
		applog.FieldTraceID, event.TraceID,
		applog.FieldTransport, "secondary",
		applog.FieldError, err)

	c.enqueue(ctx, event)
}

// enqueue stores event for the next sweep. Cancellation of ctx does not stop
// the local write.
func (c *Client) enqueue(ctx context.Context, event WideEvent) {
	n := c.queue.Enqueue(context.WithoutCancel(ctx), event)
	if n == 0 {
		c.logger.Debug("Dropped wide event, local storage unavailable",
			applog.FieldTraceID, event.TraceID)
		return
	}
	c.logger.Warn("Queued wide event for retry",
		applog.FieldTraceID, event.TraceID,
		applog.FieldQueueLength, n)
}

func send(ctx context.Context, s Sender, event WideEvent) error {
	if s == nil {
		return errNoTransport
	}
	return s.Send(ctx, event)
}

func (c *Client) track(l *Logger) {
	c.mu.Lock()
	c.pending[l] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) untrack(l *Logger) {
	c.mu.Lock()
	delete(c.pending, l)
	c.mu.Unlock()
}

// pendingCount is the number of loggers Unload would beacon.
func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) pendingLoggers() []*Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	loggers := make([]*Logger, 0, len(c.pending))
	for l := range c.pending {
		loggers = append(loggers, l)
	}
	return loggers
}

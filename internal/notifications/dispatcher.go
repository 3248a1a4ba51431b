package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/fintechindex/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Recipients is the admin contact that ToAdmin messages go to.
type Recipients struct {
	Email string
	Phone string
}

func (r Recipients) address(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	default:
		return ""
	}
}

type DispatcherConfig struct {
	Admin Recipients
	// Budget bounds one background Dispatch from start to last send.
	Budget time.Duration
	// Parallel caps concurrent sends within one event.
	Parallel int
}

// Dispatcher delivers notifications best effort. Failures are logged and
// counted, never returned to the request that caused them.
type Dispatcher struct {
	sinks map[Channel]Sink
	cfg   DispatcherConfig
	log   *slog.Logger
	prom  *observability.Prom

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, prom *observability.Prom, sinks map[Channel]Sink, cfg DispatcherConfig) *Dispatcher {
	if cfg.Budget <= 0 {
		cfg.Budget = 30 * time.Second
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}

	return &Dispatcher{
		sinks: sinks,
		cfg:   cfg,
		log:   log,
		prom:  prom,
	}
}

// Dispatch returns immediately and delivers the event's messages in the
// background. The caller's cancellation does not reach the sends, the
// dispatcher's own budget does.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if len(ev.Messages) == 0 {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.WarnContext(ctx, "notification.dropped_after_close", "kind", ev.Kind)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	if d.prom != nil {
		d.prom.NotificationsPending.Inc()
	}

	bg := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()
		if d.prom != nil {
			defer d.prom.NotificationsPending.Dec()
		}

		ctx, cancel := context.WithTimeout(bg, d.cfg.Budget)
		defer cancel()

		d.fanOut(ctx, ev)
	}()
}

// Notify sends one message on its channel and waits for the outcome. It never
// fails the caller: errors are logged and counted. Dispatch delivers every
// message of an event through it.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	_ = d.send(ctx, msg)
}

func (d *Dispatcher) fanOut(ctx context.Context, ev Event) {
	var g errgroup.Group
	g.SetLimit(d.cfg.Parallel)

	for _, msg := range ev.Messages {
		g.Go(func() error {
			d.Notify(ctx, msg)
			return nil
		})
	}

	_ = g.Wait()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	if msg.ToAdmin {
		msg.To = d.cfg.Admin.address(msg.Channel)
	}
	if msg.To == "" {
		d.log.DebugContext(ctx, "notification.skipped_no_recipient", "kind", msg.Kind, "channel", msg.Channel)
		return nil
	}

	sink, ok := d.sinks[msg.Channel]
	if !ok {
		d.log.DebugContext(ctx, "notification.skipped_no_sink", "kind", msg.Kind, "channel", msg.Channel)
		return nil
	}

	start := time.Now()
	err := sink.Send(ctx, msg)

	result := "sent"
	switch {
	case errors.Is(err, ErrCircuitOpen):
		result = "circuit_open"
	case err != nil:
		result = "failed"
	}
	d.prom.ObserveNotification(string(msg.Channel), msg.Kind, result, time.Since(start))

	if err != nil {
		d.log.WarnContext(ctx, "notification.failed",
			"kind", msg.Kind,
			"channel", msg.Channel,
			"result", result,
			"err", err,
		)
		return err
	}

	d.log.InfoContext(ctx, "notification.sent", "kind", msg.Kind, "channel", msg.Channel)
	return nil
}

// Close stops accepting events and waits for in-flight ones, or until ctx
// ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

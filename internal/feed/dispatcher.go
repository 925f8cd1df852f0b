package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nhle/cfish-notify/internal/logging"
	"github.com/nhle/cfish-notify/internal/metrics"
	"github.com/nhle/cfish-notify/internal/model"
)

// Admitter decides whether an event becomes a notification.
type Admitter interface {
	Admit(ctx context.Context, ev model.Event) (model.Notification, bool)
}

// Source produces events until ctx is cancelled. Run returns nil on
// cancellation.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- Arrival) error
}

// Arrival is an event tagged with the source that produced it.
type Arrival struct {
	Source string
	Event  model.Event
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics counts events per source.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher runs registered sources in the background and admits their
// events one at a time, in arrival order.
type Dispatcher struct {
	admit   Admitter
	sources []Source
	events  chan Arrival
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher feeding admit.
func NewDispatcher(admit Admitter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		admit:  admit,
		events: make(chan Arrival, 64),
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a source. Sources registered after Start are not run.
func (d *Dispatcher) Register(src Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, src)
}

// Start launches every source and the dispatch loop. It is a no-op when
// already running.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	ctx, d.cancel = context.WithCancel(ctx)

	for _, src := range d.sources {
		d.wg.Add(1)
		go d.runSource(ctx, src)
	}

	d.wg.Add(1)
	go d.dispatch(ctx)
}

// Stop cancels all sources and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

func (d *Dispatcher) runSource(ctx context.Context, src Source) {
	defer d.wg.Done()
	entry := d.log.WithField("source", src.Name())
	entry.Info("feed source started")

	err := src.Run(ctx, d.events)
	if err != nil && !errors.Is(err, context.Canceled) {
		entry.WithError(err).Error("feed source stopped")
		return
	}
	entry.Info("feed source stopped")
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-d.events:
			d.metrics.FeedEvent(a.Source)
			if _, ok := d.admit.Admit(ctx, a.Event); !ok {
				d.log.WithFields(logrus.Fields{
					"source": a.Source,
					"type":   a.Event.Type,
				}).Debug("event not admitted")
			}
		}
	}
}

// send delivers a to out unless ctx ends first.
func send(ctx context.Context, out chan<- Arrival, a Arrival) bool {
	select {
	case out <- a:
		return true
	case <-ctx.Done():
		return false
	}
}

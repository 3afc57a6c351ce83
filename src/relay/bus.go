package relay

import (
	"github.com/sirupsen/logrus"
)

// Handlers for the three event kinds. A component subscribes by implementing
// the interfaces for the kinds it cares about; routing is resolved once at
// subscription time, not per event.
type (
	// ChangedHandler consumes SettingsChanged events.
	ChangedHandler interface {
		HandleSettingsChanged(SettingsChanged)
	}

	// RequestHandler consumes SettingsRequest events.
	RequestHandler interface {
		HandleSettingsRequest(SettingsRequest)
	}

	// ReportHandler consumes SettingsReport events.
	ReportHandler interface {
		HandleSettingsReport(SettingsReport)
	}
)

// Bus is the per-node event dispatcher. Raise enqueues an event on a bounded
// channel; the owning node drains the channel from a single goroutine and
// calls Dispatch, so handlers never run concurrently with each other. A full
// buffer drops the event, mirroring the at-most-once semantics of the
// inter-node links.
type Bus struct {
	eventCh chan Event

	changedHandlers []ChangedHandler
	requestHandlers []RequestHandler
	reportHandlers  []ReportHandler

	logger *logrus.Entry
}

// NewBus returns a Bus whose queue holds buffer events; events raised beyond
// that while the loop is busy are dropped.
func NewBus(buffer int, logger *logrus.Entry) *Bus {
	return &Bus{
		eventCh: make(chan Event, buffer),
		logger:  logger,
	}
}

// Subscribe registers h for every event kind it handles. Subscriptions are
// expected to happen before the node loop starts; there is no unsubscribe.
func (b *Bus) Subscribe(h interface{}) {
	if ch, ok := h.(ChangedHandler); ok {
		b.changedHandlers = append(b.changedHandlers, ch)
	}
	if rh, ok := h.(RequestHandler); ok {
		b.requestHandlers = append(b.requestHandlers, rh)
	}
	if rh, ok := h.(ReportHandler); ok {
		b.reportHandlers = append(b.reportHandlers, rh)
	}
}

// Raise enqueues an event for dispatch. It never blocks; when the buffer is
// full the event is dropped.
func (b *Bus) Raise(ev Event) {
	select {
	case b.eventCh <- ev:
	default:
		b.logger.WithField("kind", ev.Kind().String()).Warn("Event buffer full, dropping")
	}
}

// Consumer returns the channel drained by the node loop.
func (b *Bus) Consumer() <-chan Event {
	return b.eventCh
}

// Dispatch delivers ev to every handler subscribed to its kind. It must only
// be called from the node loop.
func (b *Bus) Dispatch(ev Event) {
	switch e := ev.(type) {
	case SettingsChanged:
		for _, h := range b.changedHandlers {
			h.HandleSettingsChanged(e)
		}
	case SettingsRequest:
		for _, h := range b.requestHandlers {
			h.HandleSettingsRequest(e)
		}
	case SettingsReport:
		for _, h := range b.reportHandlers {
			h.HandleSettingsReport(e)
		}
	default:
		b.logger.WithField("event", ev).Error("Unexpected event type")
	}
}

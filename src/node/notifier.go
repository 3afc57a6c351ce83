package node

import (
	"github.com/sirupsen/logrus"

	"github.com/cormoran/zmk-module-settings-rpc/src/relay"
	"github.com/cormoran/zmk-module-settings-rpc/src/telemetry"
)

// Notification is one node's settings pushed to the control surface,
// independently of any aggregation. Session ties it to the fan-out call that
// triggered it.
type Notification struct {
	IdleMs  uint32       `json:"idle_ms"`
	SleepMs uint32       `json:"sleep_ms"`
	Source  relay.Source `json:"source"`
	Session string       `json:"session"`
}

// Notifier buffers notifications for the control surface. Publish never
// blocks; a full buffer drops, like everything else on this path.
type Notifier struct {
	ch     chan Notification
	logger *logrus.Entry
}

// NewNotifier returns a Notifier holding at most buffer undrained
// notifications; past that, Publish drops.
func NewNotifier(buffer int, logger *logrus.Entry) *Notifier {
	return &Notifier{
		ch:     make(chan Notification, buffer),
		logger: logger,
	}
}

// Publish enqueues a notification, dropping it if the buffer is full.
func (n *Notifier) Publish(notif Notification) {
	select {
	case n.ch <- notif:
	default:
		telemetry.NotificationDrops.Inc()
		n.logger.WithField("source", notif.Source.String()).Warn("Notification buffer full, dropping")
	}
}

// Consumer returns the notification channel.
func (n *Notifier) Consumer() <-chan Notification {
	return n.ch
}

// Drain returns every buffered notification without blocking.
func (n *Notifier) Drain() []Notification {
	out := []Notification{}
	for {
		select {
		case notif := <-n.ch:
			out = append(out, notif)
		default:
			return out
		}
	}
}

package relay

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cormoran/zmk-module-settings-rpc/src/net"
	"github.com/cormoran/zmk-module-settings-rpc/src/peers"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
	"github.com/cormoran/zmk-module-settings-rpc/src/telemetry"
)

// Fabric forwards locally raised events to the other role and translates
// inbound wire messages back into events.
//
// The forwarding rule is the same for every direction: an event whose Source
// is Self is stamped with this node's concrete source and shipped; an event
// with any other Source came from the wire and is never re-transmitted. The
// stamping is the single place where the Self sentinel is rewritten, so it
// can never appear on the wire.
//
// Delivery is best-effort: transport errors are logged and dropped, matching
// the at-most-once links underneath.
type Fabric struct {
	local  Source
	peers  *peers.PeerSet
	trans  net.Transport
	logger *logrus.Entry
}

// NewFabric builds the fabric for a node. local must be a concrete source
// (Central, or the node's peripheral index), never Self.
func NewFabric(local Source, ps *peers.PeerSet, trans net.Transport, logger *logrus.Entry) (*Fabric, error) {
	if local == Self || !local.Valid() {
		return nil, fmt.Errorf("fabric requires a concrete local source, got %s", local)
	}
	return &Fabric{
		local:  local,
		peers:  ps,
		trans:  trans,
		logger: logger,
	}, nil
}

// LocalSource returns the concrete source stamped on outbound events.
func (f *Fabric) LocalSource() Source {
	return f.local
}

// HandleSettingsChanged relays a locally raised change to the other role.
// Central fans out to every peripheral; a peripheral sends to central.
func (f *Fabric) HandleSettingsChanged(e SettingsChanged) {
	if e.Source != Self {
		return
	}

	args := net.ChangeRequest{
		IdleMs:  e.Settings.IdleMs,
		SleepMs: e.Settings.SleepMs,
		Source:  uint8(f.local),
	}

	f.forward(KindChanged, func(target string) error {
		var resp net.ChangeResponse
		return f.trans.Change(target, &args, &resp)
	})
}

// HandleSettingsRequest relays a settings request. Requests only travel from
// central to peripherals; on a peripheral this is a no-op, which also stops
// an inbound request from bouncing back.
func (f *Fabric) HandleSettingsRequest(e SettingsRequest) {
	if f.local != Central {
		return
	}

	args := net.CollectRequest{RequestID: e.RequestID}

	f.forward(KindRequest, func(target string) error {
		var resp net.CollectResponse
		return f.trans.Collect(target, &args, &resp)
	})
}

// HandleSettingsReport relays a locally raised report to central. Reports
// only travel from peripherals to central.
func (f *Fabric) HandleSettingsReport(e SettingsReport) {
	if e.Source != Self || f.local == Central {
		return
	}

	args := net.ReportRequest{
		IdleMs:    e.Settings.IdleMs,
		SleepMs:   e.Settings.SleepMs,
		Source:    uint8(f.local),
		RequestID: e.RequestID,
	}

	f.forward(KindReport, func(target string) error {
		var resp net.ReportResponse
		return f.trans.Report(target, &args, &resp)
	})
}

// forward ships one message per target node for the current direction:
// central to every peripheral, peripheral to central.
func (f *Fabric) forward(kind Kind, send func(target string) error) {
	var targets []*peers.Peer
	if f.local == Central {
		targets = f.peers.Peripherals()
	} else {
		targets = []*peers.Peer{f.peers.Central()}
	}

	for _, p := range targets {
		if err := send(p.NetAddr); err != nil {
			telemetry.RelayDrops.WithLabelValues(kind.String()).Inc()
			f.logger.WithFields(logrus.Fields{
				"kind":   kind.String(),
				"target": p.String(),
				"error":  err,
			}).Debug("Relay send failed, dropping")
			continue
		}
		telemetry.RelaysTotal.WithLabelValues(kind.String()).Inc()
	}
}

// Inbound translates a wire command into the event to dispatch locally. It
// rejects messages whose source is the Self sentinel or out of bounds: a
// well-behaved sender always stamps a concrete source before transmission.
func (f *Fabric) Inbound(cmd interface{}) (Event, error) {
	switch c := cmd.(type) {
	case *net.ChangeRequest:
		src := Source(c.Source)
		if src == Self || !src.Valid() {
			return nil, fmt.Errorf("inbound change with invalid source %d", c.Source)
		}
		return SettingsChanged{
			Settings: settings.ActivitySettings{IdleMs: c.IdleMs, SleepMs: c.SleepMs},
			Source:   src,
		}, nil
	case *net.CollectRequest:
		return SettingsRequest{RequestID: c.RequestID}, nil
	case *net.ReportRequest:
		src := Source(c.Source)
		if src == Self || !src.Valid() {
			return nil, fmt.Errorf("inbound report with invalid source %d", c.Source)
		}
		return SettingsReport{
			Settings:  settings.ActivitySettings{IdleMs: c.IdleMs, SleepMs: c.SleepMs},
			Source:    src,
			RequestID: c.RequestID,
		}, nil
	default:
		return nil, fmt.Errorf("unexpected wire command %T", cmd)
	}
}

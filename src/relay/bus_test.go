package relay

import (
	"testing"

	"github.com/cormoran/zmk-module-settings-rpc/src/common"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
)

type recordingHandler struct {
	changed  []SettingsChanged
	requests []SettingsRequest
	reports  []SettingsReport
}

func (r *recordingHandler) HandleSettingsChanged(e SettingsChanged) { r.changed = append(r.changed, e) }
func (r *recordingHandler) HandleSettingsRequest(e SettingsRequest) {
	r.requests = append(r.requests, e)
}
func (r *recordingHandler) HandleSettingsReport(e SettingsReport) { r.reports = append(r.reports, e) }

// changedOnly subscribes to a single kind.
type changedOnly struct {
	changed []SettingsChanged
}

func (c *changedOnly) HandleSettingsChanged(e SettingsChanged) { c.changed = append(c.changed, e) }

func testBus(t *testing.T, buffer int) *Bus {
	logger := common.NewTestLogger(t).WithField("test", t.Name())
	return NewBus(buffer, logger)
}

func drainAndDispatch(b *Bus) {
	for {
		select {
		case ev := <-b.Consumer():
			b.Dispatch(ev)
		default:
			return
		}
	}
}

func TestBusDispatchByKind(t *testing.T) {
	bus := testBus(t, 8)

	all := &recordingHandler{}
	one := &changedOnly{}
	bus.Subscribe(all)
	bus.Subscribe(one)

	val := settings.ActivitySettings{IdleMs: 500, SleepMs: 1800000}
	bus.Raise(SettingsChanged{Settings: val, Source: Self})
	bus.Raise(SettingsRequest{RequestID: 7})
	bus.Raise(SettingsReport{Settings: val, Source: Self, RequestID: 7})

	drainAndDispatch(bus)

	if len(all.changed) != 1 || len(all.requests) != 1 || len(all.reports) != 1 {
		t.Fatalf("full subscriber got %d/%d/%d events",
			len(all.changed), len(all.requests), len(all.reports))
	}
	if all.requests[0].RequestID != 7 {
		t.Fatalf("request id %d, want 7", all.requests[0].RequestID)
	}
	if len(one.changed) != 1 {
		t.Fatalf("changed-only subscriber got %d events", len(one.changed))
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := testBus(t, 2)

	h := &recordingHandler{}
	bus.Subscribe(h)

	for id := uint8(1); id <= 5; id++ {
		bus.Raise(SettingsRequest{RequestID: id})
	}

	drainAndDispatch(bus)

	if len(h.requests) != 2 {
		t.Fatalf("expected the 2 buffered events, got %d", len(h.requests))
	}
	if h.requests[0].RequestID != 1 || h.requests[1].RequestID != 2 {
		t.Fatalf("oldest events must survive, got %+v", h.requests)
	}
}

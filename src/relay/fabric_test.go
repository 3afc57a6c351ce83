package relay

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cormoran/zmk-module-settings-rpc/src/common"
	"github.com/cormoran/zmk-module-settings-rpc/src/net"
	"github.com/cormoran/zmk-module-settings-rpc/src/peers"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
)

// rpcRecorder acks every inbound RPC on a transport and keeps the commands.
type rpcRecorder struct {
	sync.Mutex
	cmds []interface{}
}

func (r *rpcRecorder) serve(trans net.Transport, stop <-chan struct{}) {
	go func() {
		for {
			select {
			case rpc := <-trans.Consumer():
				r.Lock()
				r.cmds = append(r.cmds, rpc.Command)
				r.Unlock()
				switch rpc.Command.(type) {
				case *net.ChangeRequest:
					rpc.Respond(&net.ChangeResponse{Success: true}, nil)
				case *net.CollectRequest:
					rpc.Respond(&net.CollectResponse{Success: true}, nil)
				case *net.ReportRequest:
					rpc.Respond(&net.ReportResponse{Success: true}, nil)
				}
			case <-stop:
				return
			}
		}
	}()
}

func (r *rpcRecorder) commands() []interface{} {
	r.Lock()
	defer r.Unlock()
	return append([]interface{}{}, r.cmds...)
}

type fabricFixture struct {
	peerSet    *peers.PeerSet
	transports []*net.InmemTransport
	recorders  []*rpcRecorder
	logger     *logrus.Entry
	stop       chan struct{}
}

// newFabricFixture wires a central and numPeripherals peripherals over inmem
// transports, with a recording responder on every node.
func newFabricFixture(t *testing.T, numPeripherals int) *fabricFixture {
	f := &fabricFixture{
		logger: common.NewTestLogger(t).WithField("test", t.Name()),
		stop:   make(chan struct{}),
	}
	t.Cleanup(func() { close(f.stop) })

	plist := []*peers.Peer{}
	for i := 0; i <= numPeripherals; i++ {
		addr, trans := net.NewInmemTransport(fmt.Sprintf("inmem%d", i))
		f.transports = append(f.transports, trans)
		plist = append(plist, peers.NewPeer(uint8(i), addr, fmt.Sprintf("node%d", i)))
	}

	for _, a := range f.transports {
		for _, b := range f.transports {
			if a != b {
				a.Connect(b.LocalAddr(), b)
			}
		}
	}

	peerSet, err := peers.NewPeerSet(plist)
	if err != nil {
		t.Fatal(err)
	}
	f.peerSet = peerSet

	for range f.transports {
		f.recorders = append(f.recorders, &rpcRecorder{})
	}
	for i, trans := range f.transports {
		f.recorders[i].serve(trans, f.stop)
	}

	return f
}

func (f *fabricFixture) fabric(t *testing.T, local Source) *Fabric {
	fab, err := NewFabric(local, f.peerSet, f.transports[int(local)], f.logger)
	if err != nil {
		t.Fatal(err)
	}
	return fab
}

func TestFabricStampsLocalSource(t *testing.T) {
	fix := newFabricFixture(t, MaxPeripherals)

	val := settings.ActivitySettings{IdleMs: 500, SleepMs: 1800000}
	for i := 1; i <= MaxPeripherals; i++ {
		fab := fix.fabric(t, Peripheral(uint8(i)))
		fab.HandleSettingsReport(SettingsReport{Settings: val, Source: Self, RequestID: 9})
	}

	time.Sleep(50 * time.Millisecond)

	cmds := fix.recorders[0].commands()
	if len(cmds) != MaxPeripherals {
		t.Fatalf("central received %d reports, want %d", len(cmds), MaxPeripherals)
	}

	seen := map[uint8]bool{}
	for _, cmd := range cmds {
		report, ok := cmd.(*net.ReportRequest)
		if !ok {
			t.Fatalf("unexpected command type %T", cmd)
		}
		if report.Source == uint8(Self) {
			t.Fatal("self sentinel leaked onto the wire")
		}
		if report.RequestID != 9 || report.IdleMs != 500 {
			t.Fatalf("unexpected report %+v", report)
		}
		seen[report.Source] = true
	}
	for i := uint8(1); i <= MaxPeripherals; i++ {
		if !seen[i] {
			t.Fatalf("no report stamped with source %d", i)
		}
	}
}

func TestFabricIgnoresRelayedEvents(t *testing.T) {
	fix := newFabricFixture(t, 2)

	fab := fix.fabric(t, Peripheral(1))
	val := settings.ActivitySettings{IdleMs: 100, SleepMs: 200}

	// Events carrying a concrete source came off the wire; re-transmitting
	// them would loop.
	fab.HandleSettingsChanged(SettingsChanged{Settings: val, Source: Central})
	fab.HandleSettingsReport(SettingsReport{Settings: val, Source: Peripheral(2), RequestID: 1})

	time.Sleep(50 * time.Millisecond)

	if cmds := fix.recorders[0].commands(); len(cmds) != 0 {
		t.Fatalf("expected nothing on the wire, central got %d commands", len(cmds))
	}
}

func TestFabricChangeFanout(t *testing.T) {
	fix := newFabricFixture(t, 3)

	fab := fix.fabric(t, Central)
	val := settings.ActivitySettings{IdleMs: 30000, SleepMs: 900000}
	fab.HandleSettingsChanged(SettingsChanged{Settings: val, Source: Self})

	time.Sleep(50 * time.Millisecond)

	for i := 1; i <= 3; i++ {
		cmds := fix.recorders[i].commands()
		if len(cmds) != 1 {
			t.Fatalf("peripheral %d received %d commands, want 1", i, len(cmds))
		}
		change, ok := cmds[0].(*net.ChangeRequest)
		if !ok {
			t.Fatalf("unexpected command type %T", cmds[0])
		}
		if change.Source != uint8(Central) || change.IdleMs != 30000 {
			t.Fatalf("unexpected change %+v", change)
		}
	}

	if cmds := fix.recorders[0].commands(); len(cmds) != 0 {
		t.Fatalf("central must not send a change to itself, got %d", len(cmds))
	}
}

func TestFabricRequestRoleGate(t *testing.T) {
	fix := newFabricFixture(t, 2)

	// Requests only travel central to peripheral.
	fix.fabric(t, Peripheral(1)).HandleSettingsRequest(SettingsRequest{RequestID: 3})
	time.Sleep(50 * time.Millisecond)
	if cmds := fix.recorders[0].commands(); len(cmds) != 0 {
		t.Fatalf("peripheral must not relay requests, central got %d", len(cmds))
	}

	fix.fabric(t, Central).HandleSettingsRequest(SettingsRequest{RequestID: 3})
	time.Sleep(50 * time.Millisecond)
	for i := 1; i <= 2; i++ {
		cmds := fix.recorders[i].commands()
		if len(cmds) != 1 {
			t.Fatalf("peripheral %d received %d commands, want 1", i, len(cmds))
		}
		req, ok := cmds[0].(*net.CollectRequest)
		if !ok || req.RequestID != 3 {
			t.Fatalf("unexpected command %+v", cmds[0])
		}
	}
}

func TestFabricRejectsInvalidLocalSource(t *testing.T) {
	fix := newFabricFixture(t, 1)

	if _, err := NewFabric(Self, fix.peerSet, fix.transports[0], fix.logger); err == nil {
		t.Fatal("fabric must reject the self sentinel as local source")
	}
	if _, err := NewFabric(Source(MaxPeripherals+1), fix.peerSet, fix.transports[0], fix.logger); err == nil {
		t.Fatal("fabric must reject an out of range local source")
	}
}

func TestFabricInbound(t *testing.T) {
	fix := newFabricFixture(t, 1)
	fab := fix.fabric(t, Central)

	ev, err := fab.Inbound(&net.ChangeRequest{IdleMs: 100, SleepMs: 200, Source: 2})
	if err != nil {
		t.Fatal(err)
	}
	changed, ok := ev.(SettingsChanged)
	if !ok || changed.Source != Peripheral(2) || changed.Settings.IdleMs != 100 {
		t.Fatalf("unexpected event %+v", ev)
	}

	ev, err = fab.Inbound(&net.CollectRequest{RequestID: 5})
	if err != nil {
		t.Fatal(err)
	}
	if req, ok := ev.(SettingsRequest); !ok || req.RequestID != 5 {
		t.Fatalf("unexpected event %+v", ev)
	}

	ev, err = fab.Inbound(&net.ReportRequest{IdleMs: 1, SleepMs: 2, Source: 1, RequestID: 5})
	if err != nil {
		t.Fatal(err)
	}
	if rep, ok := ev.(SettingsReport); !ok || rep.Source != Peripheral(1) {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := fab.Inbound(&net.ChangeRequest{Source: uint8(Self)}); err == nil {
		t.Fatal("self sentinel on the wire must be rejected")
	}
	if _, err := fab.Inbound(&net.ReportRequest{Source: MaxPeripherals + 1}); err == nil {
		t.Fatal("out of range source must be rejected")
	}
	if _, err := fab.Inbound("bogus"); err == nil {
		t.Fatal("unexpected command types must be rejected")
	}
}

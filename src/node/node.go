package node

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cormoran/zmk-module-settings-rpc/src/config"
	"github.com/cormoran/zmk-module-settings-rpc/src/net"
	"github.com/cormoran/zmk-module-settings-rpc/src/peers"
	"github.com/cormoran/zmk-module-settings-rpc/src/relay"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
	"github.com/cormoran/zmk-module-settings-rpc/src/telemetry"
)

var (
	// ErrNotCentral is returned when a central-only operation is invoked on a
	// peripheral.
	ErrNotCentral = errors.New("operation requires the central role")

	// ErrCollectBusy is returned when a collection round is requested while a
	// previous round's window is still open. Overlapping rounds are rejected
	// outright rather than silently invalidating in-flight reports.
	ErrCollectBusy = errors.New("a collection round is already open")
)

// CollectResult is the outcome of a blocking collection round.
type CollectResult struct {
	Entries []Entry `json:"entries"`
	InSync  bool    `json:"in_sync"`
}

// Node is one member of the split system. A single goroutine drains the
// event bus and the transport, so every listener runs in cooperative
// dispatch; only the collection window blocks, and it blocks the calling
// request path, never the loop.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	localSource relay.Source
	peerSet     *peers.PeerSet

	store    *settings.Store
	bus      *relay.Bus
	fabric   *relay.Fabric
	trans    net.Transport
	netCh    <-chan net.RPC
	notifier *Notifier

	// collection is only used by the central node.
	collection *Collection

	sessionLock sync.Mutex
	lastSession string

	// Shutdown channel to exit, protected to prevent concurrent exits
	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	start time.Time
}

// NewNode wires a node from its collaborators. The store's change hook is
// claimed here: every successful local write raises exactly one self-tagged
// change event, which the fabric relays to the other role.
func NewNode(conf *config.Config, peerSet *peers.PeerSet, store *settings.Store, trans net.Transport) (*Node, error) {
	localSource := relay.Central
	if !conf.IsCentral() {
		localSource = relay.Peripheral(conf.PeripheralIndex)
		if !localSource.IsPeripheral() {
			return nil, fmt.Errorf("invalid peripheral index %d", conf.PeripheralIndex)
		}
	}

	logger := conf.Logger().WithField("node", localSource.String())

	bus := relay.NewBus(conf.EventBuffer, logger)

	fabric, err := relay.NewFabric(localSource, peerSet, trans, logger)
	if err != nil {
		return nil, err
	}

	node := &Node{
		conf:        conf,
		logger:      logger,
		localSource: localSource,
		peerSet:     peerSet,
		store:       store,
		bus:         bus,
		fabric:      fabric,
		trans:       trans,
		netCh:       trans.Consumer(),
		notifier:    NewNotifier(conf.EventBuffer, logger),
		collection:  NewCollection(),
		shutdownCh:  make(chan struct{}),
	}

	bus.Subscribe(fabric)
	bus.Subscribe(node)

	store.OnChange(func(a settings.ActivitySettings) {
		bus.Raise(relay.SettingsChanged{Settings: a, Source: relay.Self})
	})

	return node, nil
}

// Init ...
func (n *Node) Init() error {
	peerAddresses := []string{}
	for _, p := range n.peerSet.Peers {
		peerAddresses = append(peerAddresses, p.NetAddr)
	}
	n.logger.WithField("peers", peerAddresses).Debug("Init Node")

	n.start = time.Now()

	return nil
}

// Run starts the transport listener and the dispatch loop. This is a
// blocking call.
func (n *Node) Run() {
	n.goFunc(n.trans.Listen)
	n.dispatchLoop()
}

// RunAsync runs the node in a separate goroutine.
func (n *Node) RunAsync() {
	n.goFunc(n.Run)
}

func (n *Node) dispatchLoop() {
	for {
		select {
		case rpc, ok := <-n.netCh:
			if !ok {
				return
			}
			n.processRPC(rpc)
		case ev := <-n.bus.Consumer():
			n.bus.Dispatch(ev)
		case <-n.shutdownCh:
			return
		}
	}
}

// Shutdown stops the node and waits for its routines to exit.
func (n *Node) Shutdown() {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if n.shutdown {
		return
	}

	n.logger.Debug("Shutdown")

	n.shutdown = true
	close(n.shutdownCh)
	n.setState(Shutdown)

	n.trans.Close()

	n.waitRoutines()
}

/* Bus handlers */

// HandleSettingsChanged applies a relayed settings change. A self-tagged
// event is the node's own value coming back around the bus; it is already
// applied, so it is ignored, which is what breaks the relay loop.
func (n *Node) HandleSettingsChanged(e relay.SettingsChanged) {
	if e.Source == relay.Self {
		return
	}

	n.logger.WithFields(logrus.Fields{
		"idle_ms":  e.Settings.IdleMs,
		"sleep_ms": e.Settings.SleepMs,
		"source":   e.Source.String(),
	}).Debug("Applying relayed activity settings")

	n.store.Apply(e.Settings)
}

// HandleSettingsRequest answers a settings request on peripherals by raising
// a self-tagged report; the fabric stamps the concrete index and ships it to
// central. Central seeds its own entry directly and ignores the request.
func (n *Node) HandleSettingsRequest(e relay.SettingsRequest) {
	if n.localSource == relay.Central {
		return
	}

	current := n.store.Get()

	n.bus.Raise(relay.SettingsReport{
		Settings:  current,
		Source:    relay.Self,
		RequestID: e.RequestID,
	})

	n.logger.WithFields(logrus.Fields{
		"idle_ms":    current.IdleMs,
		"sleep_ms":   current.SleepMs,
		"request_id": e.RequestID,
	}).Debug("Reported settings")
}

// HandleSettingsReport consumes reports on central: fan-out reports become
// independent notifications, poll reports feed the open collection. Stale,
// late, and excess reports are dropped without error.
func (n *Node) HandleSettingsReport(e relay.SettingsReport) {
	if n.localSource != relay.Central || e.Source == relay.Self {
		return
	}

	if e.RequestID == FanoutRequestID {
		n.publishNotification(e.Settings, e.Source)
		return
	}

	entry := Entry{Settings: e.Settings, Source: e.Source}
	if err := n.collection.Add(entry, e.RequestID); err != nil {
		reason := "stale"
		switch {
		case errors.Is(err, ErrWindowClosed):
			reason = "late"
		case errors.Is(err, ErrCollectionFull):
			reason = "full"
		}
		telemetry.ReportDrops.WithLabelValues(reason).Inc()
		n.logger.WithFields(logrus.Fields{
			"source":     e.Source.String(),
			"request_id": e.RequestID,
			"reason":     reason,
		}).Debug("Dropping settings report")
	}
}

/* Control-surface operations */

// GetSettings reads the local settings store. No side effects.
func (n *Node) GetSettings() settings.ActivitySettings {
	return n.store.Get()
}

// SetSettings writes the local settings store. On a successful,
// value-changing write the store's change hook raises the relayed change; a
// validation failure performs no relay.
func (n *Node) SetSettings(a settings.ActivitySettings) error {
	return n.store.Set(a)
}

// CollectAll runs a blocking collection round: reset the collection, seed
// the local entry, broadcast the request, wait out the window, then close
// and compute the consistency verdict. A missing peripheral just means a
// missing entry; the round never fails on partial results.
func (n *Node) CollectAll() (*CollectResult, error) {
	if n.localSource != relay.Central {
		return nil, ErrNotCentral
	}

	if !n.casState(Idle, Collecting) {
		return nil, ErrCollectBusy
	}

	telemetry.PollsTotal.Inc()

	requestID := n.collection.Reset(n.store.Get())

	n.logger.WithField("request_id", requestID).Debug("Collection round open")

	n.bus.Raise(relay.SettingsRequest{RequestID: requestID})

	select {
	case <-time.After(n.conf.CollectWindow):
	case <-n.shutdownCh:
	}

	entries, inSync := n.collection.Close()

	n.casState(Collecting, Idle)

	n.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"entries":    len(entries),
		"in_sync":    inSync,
	}).Debug("Collection round closed")

	return &CollectResult{Entries: entries, InSync: inSync}, nil
}

// RefreshAll triggers the fan-out protocol: central pushes its own settings
// to the control surface immediately, broadcasts a request under the
// reserved fan-out ID, and returns without waiting. Peripheral values follow
// as independent notifications.
func (n *Node) RefreshAll() (string, error) {
	if n.localSource != relay.Central {
		return "", ErrNotCentral
	}

	session := uuid.New().String()

	n.sessionLock.Lock()
	n.lastSession = session
	n.sessionLock.Unlock()

	n.publishNotification(n.store.Get(), relay.Central)

	n.bus.Raise(relay.SettingsRequest{RequestID: FanoutRequestID})

	n.logger.WithField("session", session).Debug("Fan-out refresh started")

	return session, nil
}

func (n *Node) publishNotification(a settings.ActivitySettings, src relay.Source) {
	n.sessionLock.Lock()
	session := n.lastSession
	n.sessionLock.Unlock()

	n.notifier.Publish(Notification{
		IdleMs:  a.IdleMs,
		SleepMs: a.SleepMs,
		Source:  src,
		Session: session,
	})
}

// Notifier exposes the control-surface notification stream.
func (n *Node) Notifier() *Notifier {
	return n.notifier
}

// Source returns this node's concrete source tag.
func (n *Node) Source() relay.Source {
	return n.localSource
}

// Peers returns the roster.
func (n *Node) Peers() *peers.PeerSet {
	return n.peerSet
}

// GetStats ...
func (n *Node) GetStats() map[string]string {
	current := n.store.Get()

	n.sessionLock.Lock()
	session := n.lastSession
	n.sessionLock.Unlock()

	return map[string]string{
		"role":         n.conf.Role,
		"source":       n.localSource.String(),
		"moniker":      n.conf.Moniker,
		"state":        n.getState().String(),
		"idle_ms":      strconv.FormatUint(uint64(current.IdleMs), 10),
		"sleep_ms":     strconv.FormatUint(uint64(current.SleepMs), 10),
		"num_peers":    strconv.Itoa(n.peerSet.Len()),
		"last_session": session,
		"uptime":       time.Since(n.start).String(),
	}
}

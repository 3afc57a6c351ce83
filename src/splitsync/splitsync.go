package splitsync

import (
	"fmt"

	"github.com/cormoran/zmk-module-settings-rpc/src/config"
	"github.com/cormoran/zmk-module-settings-rpc/src/net"
	"github.com/cormoran/zmk-module-settings-rpc/src/node"
	"github.com/cormoran/zmk-module-settings-rpc/src/peers"
	"github.com/cormoran/zmk-module-settings-rpc/src/rpc"
	"github.com/cormoran/zmk-module-settings-rpc/src/service"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
)

// SplitSync is the engine that assembles a node from configuration: roster,
// transport, settings store, node, control-surface router, and HTTP service.
type SplitSync struct {
	Config    *config.Config
	Peers     *peers.PeerSet
	Transport net.Transport
	Store     *settings.Store
	Node      *node.Node
	Router    *rpc.Router
	Service   *service.Service

	// Validate stands in for the hardware layer's settings acceptance rule.
	// Leave nil to accept everything.
	Validate settings.ValidateFunc
}

// NewSplitSync ...
func NewSplitSync(conf *config.Config) *SplitSync {
	return &SplitSync{
		Config: conf,
	}
}

func (s *SplitSync) initPeers() error {
	if s.Peers != nil {
		return nil
	}

	peerStore := peers.NewJSONPeerSet(s.Config.DataDir)

	roster, err := peerStore.PeerSet()
	if err != nil {
		return err
	}

	if roster.Len() < 2 {
		return fmt.Errorf("peers.json should define at least two peers")
	}

	s.Peers = roster

	return nil
}

func (s *SplitSync) initTransport() error {
	if s.Transport != nil {
		return nil
	}

	transport, err := net.NewTCPTransport(
		s.Config.BindAddr,
		s.Config.MaxPool,
		s.Config.TCPTimeout,
		s.Config.Logger(),
	)
	if err != nil {
		return err
	}

	s.Transport = transport

	return nil
}

func (s *SplitSync) initStore() error {
	initial := settings.ActivitySettings{
		IdleMs:  s.Config.IdleMs,
		SleepMs: s.Config.SleepMs,
	}

	s.Store = settings.NewStore(initial, s.Validate, s.Config.Logger())

	return nil
}

func (s *SplitSync) initNode() error {
	n, err := node.NewNode(s.Config, s.Peers, s.Store, s.Transport)
	if err != nil {
		return err
	}

	s.Node = n

	return s.Node.Init()
}

func (s *SplitSync) initService() error {
	s.Router = rpc.NewRouter(s.Node, s.Config.Logger())

	if s.Config.NoService {
		return nil
	}

	s.Service = service.NewService(s.Config.ServiceAddr, s.Node, s.Router, s.Config.Logger())

	return nil
}

// Init initialises all the components in dependency order.
func (s *SplitSync) Init() error {
	if err := s.initPeers(); err != nil {
		return err
	}
	if err := s.initTransport(); err != nil {
		return err
	}
	if err := s.initStore(); err != nil {
		return err
	}
	if err := s.initNode(); err != nil {
		return err
	}
	return s.initService()
}

// Run starts the service and the node. This is a blocking call.
func (s *SplitSync) Run() {
	if s.Service != nil {
		go s.Service.Serve()
	}

	s.Node.Run()
}

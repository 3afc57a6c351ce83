package node

import (
	"fmt"

	"github.com/cormoran/zmk-module-settings-rpc/src/net"
)

// processRPC acknowledges an inbound wire message and dispatches the
// corresponding event to the local bus. Acks are sent before dispatch so a
// slow listener never stalls the sender; they carry no payload the sender
// acts on.
func (n *Node) processRPC(rpc net.RPC) {
	ev, err := n.fabric.Inbound(rpc.Command)
	if err != nil {
		n.logger.WithField("error", err).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
		return
	}

	switch rpc.Command.(type) {
	case *net.ChangeRequest:
		rpc.Respond(&net.ChangeResponse{Success: true}, nil)
	case *net.CollectRequest:
		rpc.Respond(&net.CollectResponse{Success: true}, nil)
	case *net.ReportRequest:
		rpc.Respond(&net.ReportResponse{Success: true}, nil)
	}

	n.bus.Dispatch(ev)
}

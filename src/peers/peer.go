package peers

import "fmt"

// Peer is one node of the split system. Index 0 is the central node;
// peripherals use indices 1 and up, which double as the source tag stamped on
// their relayed events.
type Peer struct {
	Index   uint8  `json:"index"`
	NetAddr string `json:"addr"`
	Moniker string `json:"moniker,omitempty"`
}

// NewPeer returns a Peer with the given roster index, network address, and
// optional moniker.
func NewPeer(index uint8, netAddr, moniker string) *Peer {
	return &Peer{
		Index:   index,
		NetAddr: netAddr,
		Moniker: moniker,
	}
}

// IsCentral reports whether the peer holds the central role.
func (p *Peer) IsCentral() bool {
	return p.Index == 0
}

func (p *Peer) String() string {
	if p.Moniker != "" {
		return fmt.Sprintf("%s(%d)", p.Moniker, p.Index)
	}
	return fmt.Sprintf("peer(%d)", p.Index)
}

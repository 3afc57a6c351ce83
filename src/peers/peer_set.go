package peers

import (
	"fmt"
	"sort"
)

// MaxPeripherals is the fixed upper bound on peripheral peers in a roster.
// It matches the bound enforced by the relay fabric.
const MaxPeripherals = 8

// PeerSet is the roster of a split system: one central and up to
// MaxPeripherals peripherals.
type PeerSet struct {
	Peers   []*Peer         `json:"peers"`
	ByIndex map[uint8]*Peer `json:"-"`
}

// NewPeerSet creates a new PeerSet from a list of Peers. It rejects duplicate
// indices, missing central, and rosters exceeding the peripheral bound.
func NewPeerSet(peers []*Peer) (*PeerSet, error) {
	byIndex := make(map[uint8]*Peer)

	for _, peer := range peers {
		if peer.Index > MaxPeripherals {
			return nil, fmt.Errorf("peer index %d exceeds max %d", peer.Index, MaxPeripherals)
		}
		if _, ok := byIndex[peer.Index]; ok {
			return nil, fmt.Errorf("duplicate peer index %d", peer.Index)
		}
		byIndex[peer.Index] = peer
	}

	if _, ok := byIndex[0]; !ok {
		return nil, fmt.Errorf("roster has no central peer (index 0)")
	}

	sorted := append([]*Peer{}, peers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	return &PeerSet{
		Peers:   sorted,
		ByIndex: byIndex,
	}, nil
}

// Central returns the central peer.
func (ps *PeerSet) Central() *Peer {
	return ps.ByIndex[0]
}

// Peripherals returns every peripheral peer, ordered by index.
func (ps *PeerSet) Peripherals() []*Peer {
	res := []*Peer{}
	for _, p := range ps.Peers {
		if !p.IsCentral() {
			res = append(res, p)
		}
	}
	return res
}

// Len returns the number of peers.
func (ps *PeerSet) Len() int {
	return len(ps.Peers)
}

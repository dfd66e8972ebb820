package dht

import (
	"sort"
	"sync"
)

// RoutingTable is the set of peers a node knows about.
type RoutingTable struct {
	mu    sync.RWMutex
	peers map[NodeID]Peer
}

func NewRoutingTable(peers ...Peer) *RoutingTable {
	rt := &RoutingTable{peers: make(map[NodeID]Peer, len(peers))}
	for _, p := range peers {
		rt.peers[p.ID()] = p
	}
	return rt
}

func (rt *RoutingTable) Add(p Peer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.peers[p.ID()] = p
}

func (rt *RoutingTable) Remove(id NodeID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.peers, id)
}

func (rt *RoutingTable) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.peers)
}

// Closest returns up to n peers ordered by XOR distance to k, nearest first.
func (rt *RoutingTable) Closest(k Key, n int) []Peer {
	rt.mu.RLock()
	out := make([]Peer, 0, len(rt.peers))
	for _, p := range rt.peers {
		out = append(out, p)
	}
	rt.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return closer(out[i].ID(), out[j].ID(), k)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

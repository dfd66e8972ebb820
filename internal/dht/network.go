package dht

import (
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/storage"
)

// Network is a set of in-process nodes that share one routing view. It is
// constructed explicitly and handed to whoever needs a facade; there is no
// global network state.
type Network struct {
	routing *RoutingTable
	nodes   []*Node
	peers   []*LocalPeer
}

// NewNetwork creates size nodes backed by memory stores. opts apply to every
// node.
func NewNetwork(size int, opts ...Option) *Network {
	stores := make([]storage.Store, size)
	for i := range stores {
		stores[i] = storage.NewMemoryStore()
	}
	return NewNetworkWithStores(stores, opts...)
}

// NewNetworkWithStores creates one node per store.
func NewNetworkWithStores(stores []storage.Store, opts ...Option) *Network {
	net := &Network{routing: NewRoutingTable()}
	for i, s := range stores {
		peer := NewLocalPeer(NewNodeID(fmt.Sprintf("node-%d-%s", i, RandomNodeID())), s)
		net.peers = append(net.peers, peer)
		net.nodes = append(net.nodes, NewNode(peer, net.routing, opts...))
	}
	return net
}

func (n *Network) Size() int {
	return len(n.nodes)
}

// Node returns the i-th node.
func (n *Network) Node(i int) *Node {
	return n.nodes[i]
}

// Peer returns the local peer of the i-th node.
func (n *Network) Peer(i int) *LocalPeer {
	return n.peers[i]
}

// Routing returns the shared routing table.
func (n *Network) Routing() *RoutingTable {
	return n.routing
}

// Shutdown takes every node offline. In-flight and later operations fail.
func (n *Network) Shutdown() {
	for _, p := range n.peers {
		p.SetOnline(false)
	}
}

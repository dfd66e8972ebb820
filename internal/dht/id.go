// Package dht is the storage facade the identity protocols talk to. It maps
// (location key, content type) pairs onto DHT keys, replicates entries onto
// the peers closest to each key by XOR distance and exposes asynchronous,
// best-effort put/get/remove operations.
package dht

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/model"
	"github.com/google/uuid"
)

// NodeID identifies a peer in the key space.
type NodeID [32]byte

// NewNodeID hashes seed into the key space.
func NewNodeID(seed string) NodeID {
	return NodeID(sha256.Sum256([]byte(seed)))
}

// RandomNodeID returns an id derived from a fresh uuid.
func RandomNodeID() NodeID {
	return NewNodeID(uuid.NewString())
}

// ParseNodeID decodes the hex form produced by String.
func ParseNodeID(s string) (NodeID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid node id: %w", err)
	}
	if len(b) != len(NodeID{}) {
		return NodeID{}, fmt.Errorf("invalid node id length %d", len(b))
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns an abbreviated id for logs.
func (id NodeID) Short() string {
	return hex.EncodeToString(id[:4])
}

// Key is the position of an entry in the key space.
type Key [32]byte

// KeyFor derives the DHT key for a location key and content type. Different
// content types under the same location key never collide.
func KeyFor(locationKey string, ct model.ContentType) Key {
	h := sha256.New()
	h.Write([]byte(locationKey))
	h.Write([]byte{0})
	h.Write([]byte(ct.String()))

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// xorDistance returns the XOR distance between a node and a key.
func xorDistance(id NodeID, k Key) [32]byte {
	var d [32]byte
	for i := range d {
		d[i] = id[i] ^ k[i]
	}
	return d
}

// closer reports whether a is strictly closer to k than b.
func closer(a, b NodeID, k Key) bool {
	da := xorDistance(a, k)
	db := xorDistance(b, k)
	return bytes.Compare(da[:], db[:]) < 0
}

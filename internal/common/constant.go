// Package common contains shared constants, sentinel errors and small helpers
// used across hivekeeper components.
package common

// NetworkTokenHeaderName is the gRPC metadata key used to carry the
// network token on node-to-node requests.
const NetworkTokenHeaderName = "network_token"

// DefaultReplication is the number of nodes that hold a copy of each DHT entry.
const DefaultReplication = 3

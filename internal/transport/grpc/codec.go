// Package grpc is the node-to-node transport. A Server exposes a node's
// replica storage, a RemotePeer reaches it from another node and satisfies
// dht.Peer. Messages are encoded in the protobuf wire format by hand and
// travel through a custom codec.
package grpc

import (
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/wire"
)

const codecName = "hivewire"

// message is implemented by every transport request and response.
type message interface {
	marshalWire() []byte
	unmarshalWire(data []byte) error
}

// Codec encodes transport messages for grpc.
type Codec struct{}

func (Codec) Name() string {
	return codecName
}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("%s codec: cannot marshal %T", codecName, v)
	}
	return m.marshalWire(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("%s codec: cannot unmarshal into %T", codecName, v)
	}
	return m.unmarshalWire(data)
}

type StoreRequest struct {
	Key   []byte
	Value []byte
}

func (m *StoreRequest) marshalWire() []byte {
	var b wire.Builder
	return b.Bytes(1, m.Key).Bytes(2, m.Value).Finish()
}

func (m *StoreRequest) unmarshalWire(data []byte) error {
	return wire.Walk(data, func(f wire.Field) error {
		switch f.Num {
		case 1:
			m.Key = f.Raw
		case 2:
			m.Value = f.Raw
		}
		return nil
	})
}

type StoreResponse struct{}

func (m *StoreResponse) marshalWire() []byte            { return []byte{} }
func (m *StoreResponse) unmarshalWire(data []byte) error { return wire.Walk(data, skipField) }

// KeyRequest addresses one entry; Load and Delete use it.
type KeyRequest struct {
	Key []byte
}

func (m *KeyRequest) marshalWire() []byte {
	var b wire.Builder
	return b.Bytes(1, m.Key).Finish()
}

func (m *KeyRequest) unmarshalWire(data []byte) error {
	return wire.Walk(data, func(f wire.Field) error {
		if f.Num == 1 {
			m.Key = f.Raw
		}
		return nil
	})
}

type LoadResponse struct {
	Value []byte
}

func (m *LoadResponse) marshalWire() []byte {
	var b wire.Builder
	return b.Bytes(1, m.Value).Finish()
}

func (m *LoadResponse) unmarshalWire(data []byte) error {
	return wire.Walk(data, func(f wire.Field) error {
		if f.Num == 1 {
			m.Value = f.Raw
		}
		return nil
	})
}

type DeleteResponse struct{}

func (m *DeleteResponse) marshalWire() []byte            { return []byte{} }
func (m *DeleteResponse) unmarshalWire(data []byte) error { return wire.Walk(data, skipField) }

type PingRequest struct {
	From string
}

func (m *PingRequest) marshalWire() []byte {
	var b wire.Builder
	return b.String(1, m.From).Finish()
}

func (m *PingRequest) unmarshalWire(data []byte) error {
	return wire.Walk(data, func(f wire.Field) error {
		if f.Num == 1 {
			m.From = string(f.Raw)
		}
		return nil
	})
}

// PingResponse tells the caller who it is talking to.
type PingResponse struct {
	NodeID string
}

func (m *PingResponse) marshalWire() []byte {
	var b wire.Builder
	return b.String(1, m.NodeID).Finish()
}

func (m *PingResponse) unmarshalWire(data []byte) error {
	return wire.Walk(data, func(f wire.Field) error {
		if f.Num == 1 {
			m.NodeID = string(f.Raw)
		}
		return nil
	})
}

func skipField(wire.Field) error { return nil }

package dht

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/dmitrijs2005/hivekeeper/internal/storage"
	"go.uber.org/atomic"
)

// Peer is one holder of replicas. Load returns common.ErrNotFound when the
// peer has no value for key.
type Peer interface {
	ID() NodeID
	Store(ctx context.Context, key Key, value []byte) error
	Load(ctx context.Context, key Key) ([]byte, error)
	Delete(ctx context.Context, key Key) error
}

// LocalPeer serves replicas from a node-local storage.Store.
type LocalPeer struct {
	id     NodeID
	store  storage.Store
	online *atomic.Bool
}

func NewLocalPeer(id NodeID, store storage.Store) *LocalPeer {
	return &LocalPeer{id: id, store: store, online: atomic.NewBool(true)}
}

func (p *LocalPeer) ID() NodeID {
	return p.id
}

// Storage exposes the backing store, e.g. to serve it over a transport.
func (p *LocalPeer) Storage() storage.Store {
	return p.store
}

// SetOnline toggles whether the peer answers requests. An offline peer
// fails every call with common.ErrBackendUnavailable.
func (p *LocalPeer) SetOnline(online bool) {
	p.online.Store(online)
}

func (p *LocalPeer) check() error {
	if !p.online.Load() {
		return fmt.Errorf("peer %s: %w", p.id.Short(), common.ErrBackendUnavailable)
	}
	return nil
}

func (p *LocalPeer) Store(ctx context.Context, key Key, value []byte) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.store.Put(ctx, key.String(), value)
}

func (p *LocalPeer) Load(ctx context.Context, key Key) ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return p.store.Get(ctx, key.String())
}

func (p *LocalPeer) Delete(ctx context.Context, key Key) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.store.Delete(ctx, key.String())
}

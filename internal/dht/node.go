package dht

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/dmitrijs2005/hivekeeper/internal/logging"
	"github.com/dmitrijs2005/hivekeeper/internal/model"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DefaultOperationTimeout bounds every facade call.
const DefaultOperationTimeout = 10 * time.Second

// Facade is the DHT storage interface consumed by the identity protocols.
type Facade interface {
	// PutGlobal stores content under locationKey and its content type.
	PutGlobal(ctx context.Context, locationKey string, content model.Content) *Future
	// GetGlobal fetches the entry; an absent entry completes with nil
	// content and nil error.
	GetGlobal(ctx context.Context, locationKey string, ct model.ContentType) *Future
	// RemoveGlobal deletes the entry from every replica.
	RemoveGlobal(ctx context.Context, locationKey string, ct model.ContentType) *Future
}

// Stats counts operations served by a node.
type Stats struct {
	Puts    int64
	Gets    int64
	Removes int64
	Failed  int64
}

// Node is a participant of the DHT. It answers facade calls by routing them
// to the replicas closest to each key.
type Node struct {
	self        Peer
	routing     *RoutingTable
	replication int
	timeout     time.Duration
	logger      logging.Logger

	puts, gets, removes, failed atomic.Int64
}

// Option configures a Node.
type Option func(*Node)

func WithReplication(n int) Option {
	return func(nd *Node) {
		if n > 0 {
			nd.replication = n
		}
	}
}

func WithOperationTimeout(d time.Duration) Option {
	return func(nd *Node) {
		if d > 0 {
			nd.timeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(nd *Node) {
		if l != nil {
			nd.logger = l
		}
	}
}

// NewNode creates a node around its own peer. self is added to routing.
func NewNode(self Peer, routing *RoutingTable, opts ...Option) *Node {
	n := &Node{
		self:        self,
		routing:     routing,
		replication: common.DefaultReplication,
		timeout:     DefaultOperationTimeout,
		logger:      logging.Nop(),
	}
	for _, o := range opts {
		o(n)
	}
	n.logger = n.logger.With("node", self.ID().Short())
	routing.Add(self)
	return n
}

func (n *Node) ID() NodeID {
	return n.self.ID()
}

// Routing returns the routing table the node selects replicas from.
func (n *Node) Routing() *RoutingTable {
	return n.routing
}

// Self returns the node's own peer.
func (n *Node) Self() Peer {
	return n.self
}

func (n *Node) Stats() Stats {
	return Stats{
		Puts:    n.puts.Load(),
		Gets:    n.gets.Load(),
		Removes: n.removes.Load(),
		Failed:  n.failed.Load(),
	}
}

func (n *Node) PutGlobal(ctx context.Context, locationKey string, content model.Content) *Future {
	n.puts.Inc()
	data, err := model.Marshal(content)
	if err != nil {
		n.failed.Inc()
		return FailedFuture(fmt.Errorf("%w: encode: %w", common.ErrNetworkOperationFailed, err))
	}

	key := KeyFor(locationKey, content.ContentType())
	f := newFuture()
	go func() {
		err := n.put(ctx, key, data)
		n.finish(ctx, f, "put", locationKey, content.ContentType(), nil, err)
	}()
	return f
}

func (n *Node) GetGlobal(ctx context.Context, locationKey string, ct model.ContentType) *Future {
	n.gets.Inc()
	key := KeyFor(locationKey, ct)
	f := newFuture()
	go func() {
		c, err := n.get(ctx, key, ct)
		n.finish(ctx, f, "get", locationKey, ct, c, err)
	}()
	return f
}

func (n *Node) RemoveGlobal(ctx context.Context, locationKey string, ct model.ContentType) *Future {
	n.removes.Inc()
	key := KeyFor(locationKey, ct)
	f := newFuture()
	go func() {
		err := n.remove(ctx, key)
		n.finish(ctx, f, "remove", locationKey, ct, nil, err)
	}()
	return f
}

func (n *Node) finish(ctx context.Context, f *Future, op, locationKey string, ct model.ContentType, c model.Content, err error) {
	if err != nil {
		n.failed.Inc()
		n.logger.Debug(ctx, "dht operation failed", "op", op, "content_type", ct.String(), "error", err)
	} else {
		n.logger.Debug(ctx, "dht operation done", "op", op, "content_type", ct.String(), "found", c != nil)
	}
	f.complete(c, err)
}

func (n *Node) replicas(key Key) ([]Peer, error) {
	peers := n.routing.Closest(key, n.replication)
	if len(peers) == 0 {
		return nil, fmt.Errorf("%w: no peers", common.ErrNetworkOperationFailed)
	}
	return peers, nil
}

// put writes to every replica in parallel and succeeds if at least one
// replica accepted the value.
func (n *Node) put(ctx context.Context, key Key, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	peers, err := n.replicas(key)
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		errs   error
		stored atomic.Int32
		g      errgroup.Group
	)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			if err := p.Store(ctx, key, data); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("peer %s: %w", p.ID().Short(), err))
				mu.Unlock()
				return nil
			}
			stored.Inc()
			return nil
		})
	}
	_ = g.Wait()

	if stored.Load() == 0 {
		return fmt.Errorf("%w: put %s: %w", common.ErrNetworkOperationFailed, key.String()[:8], errs)
	}
	return nil
}

// get asks replicas nearest first and returns the first value that
// decodes. The entry is absent only if some replica answered "not found"
// and every other replica was unreachable; a value that does not decode
// counts as a failed replica, never as absence.
func (n *Node) get(ctx context.Context, key Key, ct model.ContentType) (model.Content, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	peers, err := n.replicas(key)
	if err != nil {
		return nil, err
	}

	var errs error
	answered, corrupt := false, false
	for _, p := range peers {
		data, err := p.Load(ctx, key)
		switch {
		case err == nil:
			c, decodeErr := model.Unmarshal(ct, data)
			if decodeErr == nil {
				return c, nil
			}
			corrupt = true
			errs = multierr.Append(errs, fmt.Errorf("peer %s: decode %s: %w", p.ID().Short(), ct, decodeErr))
		case errors.Is(err, common.ErrNotFound):
			answered = true
		default:
			errs = multierr.Append(errs, fmt.Errorf("peer %s: %w", p.ID().Short(), err))
		}
	}

	if answered && !corrupt {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: get %s: %w", common.ErrNetworkOperationFailed, key.String()[:8], errs)
}

// remove deletes from every replica; any replica failure fails the call,
// since the entry may survive there.
func (n *Node) remove(ctx context.Context, key Key) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	peers, err := n.replicas(key)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for _, p := range peers {
		p := p
		g.Go(func() error {
			if err := p.Delete(ctx, key); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("peer %s: %w", p.ID().Short(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		return fmt.Errorf("%w: remove %s: %w", common.ErrNetworkOperationFailed, key.String()[:8], errs)
	}
	return nil
}

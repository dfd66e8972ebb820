// Package node wires a storage node together: replica store, DHT node,
// node-to-node gRPC server and connections to the configured peers.
package node

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/hivekeeper/internal/auth"
	"github.com/dmitrijs2005/hivekeeper/internal/config"
	"github.com/dmitrijs2005/hivekeeper/internal/dht"
	"github.com/dmitrijs2005/hivekeeper/internal/logging"
	"github.com/dmitrijs2005/hivekeeper/internal/storage"
	"github.com/dmitrijs2005/hivekeeper/internal/users"
	"github.com/sethvargo/go-retry"

	gs "github.com/dmitrijs2005/hivekeeper/internal/transport/grpc"
)

// App is one running node.
type App struct {
	config *config.Config
	logger logging.Logger
	store  storage.Store
	db     *sql.DB
	local  *dht.LocalPeer
	node   *dht.Node
	tokens *auth.TokenSource
	users  *users.Service

	mu    sync.Mutex
	peers []*gs.RemotePeer
}

// openStore is replaced in tests.
var openStore = func(ctx context.Context, c *config.Config) (storage.Store, *sql.DB, error) {
	switch c.StorageBackend {
	case config.BackendPostgres:
		return storage.OpenPostgres(ctx, c.DatabaseDSN)
	case config.BackendS3:
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			Prefix:       c.S3Prefix,
		})
		return s, nil, err
	default:
		return storage.NewMemoryStore(), nil, nil
	}
}

func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	store, db, err := openStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s store init error: %w", c.StorageBackend, err)
	}

	id := dht.RandomNodeID()
	if c.NodeID != "" {
		id = dht.NewNodeID(c.NodeID)
	}

	logger := l.With("node", id.Short())
	local := dht.NewLocalPeer(id, store)
	node := dht.NewNode(local, dht.NewRoutingTable(),
		dht.WithReplication(c.Replication),
		dht.WithOperationTimeout(c.OperationTimeout),
		dht.WithLogger(l),
	)

	return &App{
		config: c,
		logger: logger,
		store:  store,
		db:     db,
		local:  local,
		node:   node,
		tokens: auth.NewTokenSource(id.String(), []byte(c.NetworkSecret), c.TokenTTL),
		users:  users.NewService(node, users.WithLogger(logger)),
	}, nil
}

// Node returns the DHT facade of this node.
func (app *App) Node() *dht.Node {
	return app.node
}

// Users returns the identity service bound to this node.
func (app *App) Users() *users.Service {
	return app.users
}

// Peers returns the remote peers joined so far.
func (app *App) Peers() []*gs.RemotePeer {
	app.mu.Lock()
	defer app.mu.Unlock()
	return append([]*gs.RemotePeer(nil), app.peers...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves on the configured address until ctx is done or the process
// is signalled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	lis, err := net.Listen("tcp", app.config.ListenAddr)
	if err != nil {
		return err
	}
	return app.Serve(ctx, lis)
}

// Serve runs the gRPC server on lis, joins the configured peers and blocks
// until ctx is done.
func (app *App) Serve(ctx context.Context, lis net.Listener) error {
	app.logger.Info(ctx, "Starting node...", "backend", app.store.Name(), "peers", len(app.config.Peers))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := gs.NewServer(lis.Addr().String(), app.local.ID(), app.store, app.logger, app.config.NetworkSecret)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		errCh <- srv.Serve(ctx, lis)
	}()

	for _, addr := range app.config.Peers {
		addr := addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.join(ctx, addr); err != nil && ctx.Err() == nil {
				app.logger.Error(ctx, "giving up on peer", "address", addr, "error", err)
			}
		}()
	}

	wg.Wait()
	app.close(ctx)
	return <-errCh
}

// join dials addr with exponential backoff and adds the peer to the
// routing table.
func (app *App) join(ctx context.Context, addr string) error {
	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithCappedDuration(10*time.Second, b)
	b = retry.WithMaxRetries(10, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		dialCtx, cancel := context.WithTimeout(ctx, app.config.OperationTimeout)
		defer cancel()

		p, err := gs.Dial(dialCtx, addr, app.local.ID(), app.tokens)
		if err != nil {
			app.logger.Warn(ctx, "peer not reachable yet", "address", addr, "error", err)
			return retry.RetryableError(err)
		}

		app.mu.Lock()
		app.peers = append(app.peers, p)
		app.mu.Unlock()
		app.node.Routing().Add(p)

		app.logger.Info(ctx, "joined peer", "address", addr, "peer", p.ID().Short())
		return nil
	})
}

func (app *App) close(ctx context.Context) {
	for _, p := range app.Peers() {
		if err := p.Close(); err != nil {
			app.logger.Warn(ctx, "closing peer connection", "peer", p.ID().Short(), "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "closing database", "error", err)
		}
	}
	app.logger.Info(ctx, "Node stopped")
}

package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/hivekeeper/internal/dht"
	"github.com/dmitrijs2005/hivekeeper/internal/logging"
	"github.com/dmitrijs2005/hivekeeper/internal/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server serves a node's replica store to the rest of the network.
type Server struct {
	address string
	self    dht.NodeID
	store   storage.Store
	logger  logging.Logger
	secret  []byte
}

func NewServer(address string, self dht.NodeID, store storage.Store, l logging.Logger, networkSecret string) *Server {
	return &Server{
		address: address,
		self:    self,
		store:   store,
		logger:  l.With("module", "grpc_server"),
		secret:  []byte(networkSecret),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops
// gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {

	srv := grpc.NewServer(
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(s.networkTokenInterceptor),
	)

	RegisterReplicaServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String(), "node", s.self.Short())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}

func (s *Server) Store(ctx context.Context, req *StoreRequest) (*StoreResponse, error) {
	key, err := keyString(req.Key)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, key, req.Value); err != nil {
		s.logger.Error(ctx, "store failed", "key", key, "error", err)
		return nil, toStatus(err)
	}
	return &StoreResponse{}, nil
}

func (s *Server) Load(ctx context.Context, req *KeyRequest) (*LoadResponse, error) {
	key, err := keyString(req.Key)
	if err != nil {
		return nil, err
	}
	value, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoadResponse{Value: value}, nil
}

func (s *Server) Delete(ctx context.Context, req *KeyRequest) (*DeleteResponse, error) {
	key, err := keyString(req.Key)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Error(ctx, "delete failed", "key", key, "error", err)
		return nil, toStatus(err)
	}
	return &DeleteResponse{}, nil
}

func (s *Server) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	s.logger.Debug(ctx, "ping", "from", req.From)
	return &PingResponse{NodeID: s.self.String()}, nil
}

// keyString validates a raw key and renders it the way local peers index
// their stores.
func keyString(raw []byte) (string, error) {
	var k dht.Key
	if len(raw) != len(k) {
		return "", status.Errorf(codes.InvalidArgument, "key must be %d bytes, got %d", len(k), len(raw))
	}
	copy(k[:], raw)
	return k.String(), nil
}

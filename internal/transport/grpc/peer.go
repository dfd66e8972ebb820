package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/auth"
	"github.com/dmitrijs2005/hivekeeper/internal/dht"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// RemotePeer is a dht.Peer on another node, reached over grpc.
type RemotePeer struct {
	id     dht.NodeID
	addr   string
	conn   *grpc.ClientConn
	tokens *auth.TokenSource
}

var _ dht.Peer = (*RemotePeer)(nil)

// Dial connects to the node at addr and learns its id with a ping. Extra
// options are appended to the defaults, e.g. a context dialer in tests.
func Dial(ctx context.Context, addr string, self dht.NodeID, tokens *auth.TokenSource, opts ...grpc.DialOption) (*RemotePeer, error) {
	p := &RemotePeer{addr: addr, tokens: tokens}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
		grpc.WithUnaryInterceptor(p.networkTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	p.conn = conn

	resp := &PingResponse{}
	if err := conn.Invoke(ctx, methodPing, &PingRequest{From: self.String()}, resp); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, fromStatus(err))
	}
	id, err := dht.ParseNodeID(resp.NodeID)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	p.id = id
	return p, nil
}

func (p *RemotePeer) networkTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method != methodPing {
		token, err := p.tokens.Token()
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		ctx = withNetworkToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (p *RemotePeer) ID() dht.NodeID {
	return p.id
}

// Addr returns the address the peer was dialled at.
func (p *RemotePeer) Addr() string {
	return p.addr
}

func (p *RemotePeer) Store(ctx context.Context, key dht.Key, value []byte) error {
	err := p.conn.Invoke(ctx, methodStore, &StoreRequest{Key: key[:], Value: value}, &StoreResponse{})
	return fromStatus(err)
}

func (p *RemotePeer) Load(ctx context.Context, key dht.Key) ([]byte, error) {
	resp := &LoadResponse{}
	if err := p.conn.Invoke(ctx, methodLoad, &KeyRequest{Key: key[:]}, resp); err != nil {
		return nil, fromStatus(err)
	}
	if resp.Value == nil {
		return []byte{}, nil
	}
	return resp.Value, nil
}

func (p *RemotePeer) Delete(ctx context.Context, key dht.Key) error {
	err := p.conn.Invoke(ctx, methodDelete, &KeyRequest{Key: key[:]}, &DeleteResponse{})
	return fromStatus(err)
}

func (p *RemotePeer) Close() error {
	return p.conn.Close()
}

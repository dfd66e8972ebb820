package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/hivekeeper/internal/auth"
	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const callerKey ctxKey = "caller"

// CallerFromContext returns the node id the request was authenticated as.
func CallerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerKey).(string)
	return id, ok
}

// networkTokenInterceptor admits Ping without credentials and requires a
// valid network token on every other method.
func (s *Server) networkTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if info.FullMethod == methodPing {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.NetworkTokenHeaderName)
		if len(values) > 0 {
			token = values[0]
		}
	}
	if len(token) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	nodeID, err := auth.GetNodeIDFromToken(token, s.secret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = context.WithValue(ctx, callerKey, nodeID)

	return handler(ctx, req)
}

func withNetworkToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.NetworkTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

package grpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps a storage error onto a grpc status.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrBackendUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// fromStatus turns a grpc error back into the sentinel errors the DHT
// layer understands.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", common.ErrBackendUnavailable, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return common.ErrNotFound
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", common.ErrBackendUnavailable, context.DeadlineExceeded)
	case codes.Canceled:
		return fmt.Errorf("%w: %w", common.ErrBackendUnavailable, context.Canceled)
	default:
		return fmt.Errorf("%w: %s: %s", common.ErrBackendUnavailable, st.Code(), st.Message())
	}
}

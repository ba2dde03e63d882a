package transport

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"modelgate/internal/manager"
)

const (
	errorDomain    = "modelgate"
	reasonDraining = "DRAINING"
)

// toStatus maps a runtime error onto a gRPC status. Draining rejections carry
// an ErrorInfo detail so clients can tell them apart from other Unavailable
// statuses.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case manager.IsModelNotFound(err):
		code = codes.NotFound
	case manager.IsDraining(err), manager.IsNotReady(err):
		code = codes.Unavailable
	case manager.IsBadInput(err):
		code = codes.InvalidArgument
	case manager.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	st := status.New(code, err.Error())
	if manager.IsDraining(err) {
		if ds, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reasonDraining, Domain: errorDomain}); derr == nil {
			st = ds
		}
	}
	return st.Err()
}

func reason(st *status.Status) string {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return info.GetReason()
		}
	}
	return ""
}

// RemoteError is a failure reported by the runtime that has no closer local
// equivalent. It carries an HTTP status for the gateway.
type RemoteError struct {
	Code    codes.Code
	Message string
}

func (e *RemoteError) Error() string { return "backend: " + e.Code.String() + ": " + e.Message }

func (e *RemoteError) StatusCode() int {
	switch e.Code {
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// fromStatus maps a gRPC error back onto the runtime's error types.
func fromStatus(model string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.NotFound:
		return manager.ErrModelNotFound(model)
	case codes.InvalidArgument:
		return &manager.BadInputError{Reason: st.Message()}
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable:
		if reason(st) == reasonDraining {
			return manager.ErrDraining
		}
		return &RemoteError{Code: st.Code(), Message: st.Message()}
	default:
		return &RemoteError{Code: st.Code(), Message: st.Message()}
	}
}

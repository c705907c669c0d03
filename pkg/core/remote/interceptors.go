package remote

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"rpcreg/pkg/core/logging"
)

var interceptorLogger = logging.New("remote")

// RequestIDHeader carries the per-call request ID.
const RequestIDHeader = "x-request-id"

type contextKey string

// RequestIDKey is the context key under which WithRequestID stores the ID.
const RequestIDKey contextKey = "request_id"

// WithRequestID attaches a request ID to the context; outgoing calls will
// propagate it instead of minting a new one.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom extracts the request ID from the context.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// labelMetadata converts a label set to metadata key/value pairs. Header
// field names must be lowercase under HTTP/2, so keys are lowered here.
func labelMetadata(labelSet map[string]string) []string {
	kv := make([]string, 0, len(labelSet)*2)
	for k, v := range labelSet {
		kv = append(kv, strings.ToLower(k), v)
	}
	return kv
}

// labelUnaryInterceptor attaches the client's labels to every unary call.
func labelUnaryInterceptor(labelSet map[string]string) grpc.UnaryClientInterceptor {
	kv := labelMetadata(labelSet)
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if len(kv) > 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, kv...)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// labelStreamInterceptor attaches the client's labels to every stream.
func labelStreamInterceptor(labelSet map[string]string) grpc.StreamClientInterceptor {
	kv := labelMetadata(labelSet)
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		if len(kv) > 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, kv...)
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// requestIDUnaryInterceptor propagates the request ID to outgoing calls,
// minting one when the context carries none.
func requestIDUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		requestID := RequestIDFrom(ctx)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// loggingUnaryInterceptor debug-logs outgoing unary calls.
func loggingUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()

		err := invoker(ctx, method, req, reply, cc, opts...)

		statusCode := codes.OK
		if err != nil {
			statusCode = status.Code(err)
		}
		interceptorLogger.WithFields(map[string]interface{}{
			"method":   method,
			"status":   statusCode.String(),
			"duration": time.Since(start),
		}).Debug("rpc client request")

		return err
	}
}

// loggingStreamInterceptor debug-logs outgoing stream openings.
func loggingStreamInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		start := time.Now()

		stream, err := streamer(ctx, desc, cc, method, opts...)

		statusCode := codes.OK
		if err != nil {
			statusCode = status.Code(err)
		}
		interceptorLogger.WithFields(map[string]interface{}{
			"method":   method,
			"status":   statusCode.String(),
			"duration": time.Since(start),
		}).Debug("rpc client stream opened")

		return stream, err
	}
}

// inflightUnaryInterceptor caps concurrent unary calls with a channel
// semaphore. Acquisition respects call cancellation.
func inflightUnaryInterceptor(sem chan struct{}) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		}
		defer func() { <-sem }()
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

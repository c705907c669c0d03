package remote

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// captureInvoker records the outgoing context handed to the transport.
func captureInvoker(captured *context.Context) grpc.UnaryInvoker {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		*captured = ctx
		return nil
	}
}

func TestLabelUnaryInterceptor_AttachesMetadata(t *testing.T) {
	interceptor := labelUnaryInterceptor(map[string]string{
		"app_conn.module": "config",
		"app_conn.Region": "eu-1",
	})

	var captured context.Context
	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, captureInvoker(&captured))
	if err != nil {
		t.Fatalf("interceptor error = %v", err)
	}

	md, ok := metadata.FromOutgoingContext(captured)
	if !ok {
		t.Fatal("no outgoing metadata")
	}
	if got := md.Get("app_conn.module"); len(got) != 1 || got[0] != "config" {
		t.Errorf("app_conn.module = %v, want [config]", got)
	}
	// Header field names are lowered per HTTP/2.
	if got := md.Get("app_conn.region"); len(got) != 1 || got[0] != "eu-1" {
		t.Errorf("app_conn.region = %v, want [eu-1]", got)
	}
}

func TestLabelUnaryInterceptor_EmptySet(t *testing.T) {
	interceptor := labelUnaryInterceptor(nil)

	var captured context.Context
	if err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, captureInvoker(&captured)); err != nil {
		t.Fatalf("interceptor error = %v", err)
	}

	if md, ok := metadata.FromOutgoingContext(captured); ok && len(md) != 0 {
		t.Errorf("empty label set produced metadata: %v", md)
	}
}

func TestRequestIDUnaryInterceptor_PropagatesExisting(t *testing.T) {
	interceptor := requestIDUnaryInterceptor()
	ctx := WithRequestID(context.Background(), "req-42")

	var captured context.Context
	if err := interceptor(ctx, "/svc/Method", nil, nil, nil, captureInvoker(&captured)); err != nil {
		t.Fatalf("interceptor error = %v", err)
	}

	md, _ := metadata.FromOutgoingContext(captured)
	if got := md.Get(RequestIDHeader); len(got) != 1 || got[0] != "req-42" {
		t.Errorf("%s = %v, want [req-42]", RequestIDHeader, got)
	}
}

func TestRequestIDUnaryInterceptor_MintsWhenAbsent(t *testing.T) {
	interceptor := requestIDUnaryInterceptor()

	var captured context.Context
	if err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, captureInvoker(&captured)); err != nil {
		t.Fatalf("interceptor error = %v", err)
	}

	md, _ := metadata.FromOutgoingContext(captured)
	got := md.Get(RequestIDHeader)
	if len(got) != 1 || got[0] == "" {
		t.Errorf("%s = %v, want one non-empty value", RequestIDHeader, got)
	}
}

func TestInflightUnaryInterceptor_CapsConcurrency(t *testing.T) {
	sem := make(chan struct{}, 1)
	interceptor := inflightUnaryInterceptor(sem)

	release := make(chan struct{})
	entered := make(chan struct{})
	blockingInvoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		close(entered)
		<-release
		return nil
	}

	go interceptor(context.Background(), "/svc/Slow", nil, nil, nil, blockingInvoker)
	<-entered

	// The slot is taken; a canceled second call must fail instead of queueing.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := interceptor(ctx, "/svc/Fast", nil, nil, nil, captureInvoker(new(context.Context)))
	if status.Code(err) != codes.Canceled {
		t.Errorf("second call error = %v, want Canceled", err)
	}

	close(release)

	// The slot frees up once the first call returns.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sem <- struct{}{}:
			<-sem
			return
		case <-deadline:
			t.Fatal("semaphore slot never released")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRequestIDFrom(t *testing.T) {
	if got := RequestIDFrom(context.Background()); got != "" {
		t.Errorf("RequestIDFrom(empty ctx) = %q, want \"\"", got)
	}
	if got := RequestIDFrom(WithRequestID(context.Background(), "abc")); got != "abc" {
		t.Errorf("RequestIDFrom = %q, want abc", got)
	}
}

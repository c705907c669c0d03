package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/resolver/manual"

	"rpcreg/pkg/core/labels"
	"rpcreg/pkg/core/version"
)

// ConnectionType identifies the transport used by a managed client.
type ConnectionType string

// ConnectionTypeGRPC is the only transport the registry can construct.
const ConnectionTypeGRPC ConnectionType = "GRPC"

// ErrUnsupportedConnectionType is returned when a client is requested for a
// transport the registry cannot construct. This signals caller
// misconfiguration and is never retried internally.
var ErrUnsupportedConnectionType = errors.New("unsupported connection type")

// clusterScheme is the resolver scheme used for cluster member lists.
const clusterScheme = "rpcreg"

// roundRobinServiceConfig spreads cluster traffic across all members.
const roundRobinServiceConfig = `{"loadBalancingConfig":[{"round_robin":{}}]}`

// Client is a registry-managed RPC client. Instances are created through the
// registry, which guarantees at most one live client per name; callers hold
// borrowed references and must not shut a client down directly (use
// Registry.DestroyClient).
type Client interface {
	// Name returns the registry key this client was created under.
	Name() string

	// ConnectionType returns the transport kind.
	ConnectionType() ConnectionType

	// Labels returns a copy of the resolved connection labels. Every label
	// is attached to every outgoing request as gRPC metadata.
	Labels() map[string]string

	// Connect establishes the underlying channel. SDK clients take exactly
	// one target, cluster clients one or more.
	Connect(ctx context.Context, targets ...string) error

	// Conn exposes the underlying channel for stub construction. Nil until
	// Connect succeeds.
	Conn() *grpc.ClientConn

	// State reports the current channel state.
	State() connectivity.State

	// Shutdown releases all resources. Called by the registry during
	// destroy; safe to call on a never-connected client.
	Shutdown() error
}

// DialConfig holds channel-level settings shared by both client variants.
type DialConfig struct {
	Timeout           time.Duration // readiness wait budget when Block is set
	MaxRecvMsgSize    int
	MaxSendMsgSize    int
	KeepaliveInterval time.Duration
	KeepaliveTimeout  time.Duration
	Block             bool // wait for the channel to become ready in Connect
}

// DefaultDialConfig returns the settings used when ClientOptions.Dial is nil.
func DefaultDialConfig() DialConfig {
	return DialConfig{
		Timeout:           30 * time.Second,
		MaxRecvMsgSize:    16 * 1024 * 1024, // 16MB
		MaxSendMsgSize:    16 * 1024 * 1024, // 16MB
		KeepaliveInterval: 30 * time.Second,
		KeepaliveTimeout:  10 * time.Second,
		Block:             false,
	}
}

// ClientOptions is the single construction request for both client variants.
// The zero value is valid: no labels, no label collection, insecure
// transport, unbounded in-flight calls, default dial settings.
type ClientOptions struct {
	// WorkerCoreSize and WorkerMaxSize bound concurrent in-flight unary
	// calls. Zero means implementation default (unbounded). When only the
	// core size is set it is used as the bound.
	WorkerCoreSize int
	WorkerMaxSize  int

	// Labels is the explicit label set. It wins over collected labels on
	// key conflict.
	Labels map[string]string

	// Properties is the raw configuration payload. When non-nil the label
	// collector chain is consulted during construction.
	Properties *labels.Properties

	// TLS configures transport security. Nil means insecure credentials.
	TLS *TLSConfig

	// Dial overrides the default channel settings.
	Dial *DialConfig
}

func (o ClientOptions) inflightLimit() int {
	if o.WorkerMaxSize > 0 {
		return o.WorkerMaxSize
	}
	return o.WorkerCoreSize
}

func (o ClientOptions) dialConfig() DialConfig {
	if o.Dial != nil {
		return *o.Dial
	}
	return DefaultDialConfig()
}

// grpcClient carries the state shared by both variants.
type grpcClient struct {
	name    string
	ctype   ConnectionType
	labels  map[string]string
	dial    DialConfig
	creds   credentials.TransportCredentials
	limiter chan struct{}

	mu     sync.Mutex
	conn   *grpc.ClientConn
	closed bool
}

func newGRPCClient(name string, opts ClientOptions) (*grpcClient, error) {
	if name == "" {
		return nil, errors.New("client name is required")
	}

	creds, err := opts.TLS.Credentials()
	if err != nil {
		return nil, fmt.Errorf("build tls credentials for client %q: %w", name, err)
	}

	labelSet := make(map[string]string, len(opts.Labels))
	for k, v := range opts.Labels {
		labelSet[k] = v
	}

	var limiter chan struct{}
	if n := opts.inflightLimit(); n > 0 {
		limiter = make(chan struct{}, n)
	}

	return &grpcClient{
		name:    name,
		ctype:   ConnectionTypeGRPC,
		labels:  labelSet,
		dial:    opts.dialConfig(),
		creds:   creds,
		limiter: limiter,
	}, nil
}

func (c *grpcClient) Name() string { return c.name }

func (c *grpcClient) ConnectionType() ConnectionType { return c.ctype }

func (c *grpcClient) Labels() map[string]string {
	out := make(map[string]string, len(c.labels))
	for k, v := range c.labels {
		out[k] = v
	}
	return out
}

func (c *grpcClient) Conn() *grpc.ClientConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *grpcClient) State() connectivity.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		if c.closed {
			return connectivity.Shutdown
		}
		return connectivity.Idle
	}
	return c.conn.GetState()
}

func (c *grpcClient) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}

// connect builds the channel and, when Block is set, waits for it to become
// ready. The channel is published before waiting so that a concurrent
// Shutdown can interrupt the wait.
func (c *grpcClient) connect(ctx context.Context, target string, extra ...grpc.DialOption) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client %q is shut down", c.name)
	}
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}

	opts := append(c.dialOptions(), extra...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("create channel for %q: %w", target, err)
	}
	conn.Connect()
	c.conn = conn
	c.mu.Unlock()

	if !c.dial.Block {
		return nil
	}
	return waitReady(ctx, conn, c.dial.Timeout)
}

func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	for {
		s := conn.GetState()
		if s == connectivity.Ready {
			return nil
		}
		if s == connectivity.Shutdown {
			return errors.New("channel shut down while connecting")
		}
		if !conn.WaitForStateChange(ctx, s) {
			return fmt.Errorf("wait for channel readiness: %w", ctx.Err())
		}
	}
}

func (c *grpcClient) dialOptions() []grpc.DialOption {
	unary := []grpc.UnaryClientInterceptor{
		labelUnaryInterceptor(c.labels),
		requestIDUnaryInterceptor(),
		loggingUnaryInterceptor(),
	}
	if c.limiter != nil {
		unary = append([]grpc.UnaryClientInterceptor{inflightUnaryInterceptor(c.limiter)}, unary...)
	}

	return []grpc.DialOption{
		grpc.WithTransportCredentials(c.creds),
		grpc.WithUserAgent(version.UserAgent()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.dial.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(c.dial.MaxSendMsgSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.dial.KeepaliveInterval,
			Timeout:             c.dial.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(unary...),
		grpc.WithChainStreamInterceptor(
			labelStreamInterceptor(c.labels),
			loggingStreamInterceptor(),
		),
	}
}

// SDKClient is the point-to-point variant: it dials exactly one target.
type SDKClient struct {
	*grpcClient
}

// NewSDKClient creates a point-to-point client. No I/O happens here; the
// channel is established by Connect.
func NewSDKClient(name string, opts ClientOptions) (*SDKClient, error) {
	base, err := newGRPCClient(name, opts)
	if err != nil {
		return nil, err
	}
	return &SDKClient{grpcClient: base}, nil
}

// Connect dials the single target.
func (c *SDKClient) Connect(ctx context.Context, targets ...string) error {
	if len(targets) != 1 {
		return fmt.Errorf("sdk client %q requires exactly one target, got %d", c.name, len(targets))
	}
	return c.connect(ctx, targets[0])
}

// ClusterClient is the cluster variant: it spreads calls across a member
// list using round-robin balancing.
type ClusterClient struct {
	*grpcClient
}

// NewClusterClient creates a cluster client. No I/O happens here; the
// channel is established by Connect.
func NewClusterClient(name string, opts ClientOptions) (*ClusterClient, error) {
	base, err := newGRPCClient(name, opts)
	if err != nil {
		return nil, err
	}
	return &ClusterClient{grpcClient: base}, nil
}

// Connect dials the cluster member list.
func (c *ClusterClient) Connect(ctx context.Context, targets ...string) error {
	if len(targets) == 0 {
		return fmt.Errorf("cluster client %q requires at least one target", c.name)
	}

	rb := manual.NewBuilderWithScheme(clusterScheme)
	addrs := make([]resolver.Address, len(targets))
	for i, t := range targets {
		addrs[i] = resolver.Address{Addr: t}
	}
	rb.InitialState(resolver.State{Addresses: addrs})

	return c.connect(ctx, clusterScheme+":///"+c.name,
		grpc.WithResolvers(rb),
		grpc.WithDefaultServiceConfig(roundRobinServiceConfig),
	)
}

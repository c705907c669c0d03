// ============================================================================
// rpcreg - Process-wide RPC Client Registry
// ============================================================================
//
// Package:     remote
// Description: Named RPC client registry and gRPC client variants
// License:     MIT
// ============================================================================

// Package remote manages named RPC clients. A Registry guarantees at most
// one live client per name, coordinates construction between concurrent
// callers, and resolves the connection labels a client attaches to every
// request. A process-wide default registry is available through the
// package-level functions.
package remote

import (
	"fmt"
	"sync"

	"rpcreg/pkg/core/labels"
	"rpcreg/pkg/core/logging"
)

var registryLogger = logging.New("registry")

// Registry maps client names to live clients. All methods are safe for
// unsynchronized concurrent use. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates an empty registry. Most processes use the default
// registry via the package-level functions; separate instances exist so
// tests and embedded uses can stay isolated.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// GetClient returns the client registered under name, if any. Pure lookup;
// never triggers construction.
func (r *Registry) GetClient(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// AllClientEntries returns a point-in-time snapshot of the registry. The
// snapshot may be stale immediately; it never blocks concurrent mutation
// beyond the copy itself.
func (r *Registry) AllClientEntries() map[string]Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Client, len(r.clients))
	for name, c := range r.clients {
		out[name] = c
	}
	return out
}

// Status reports the connection state of every registered client.
func (r *Registry) Status() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.clients))
	for name, c := range r.clients {
		out[name] = c.State().String()
	}
	return out
}

// CreateClient returns the client registered under name, constructing an SDK
// (point-to-point) client first if none exists. Construction happens at most
// once per name: concurrent callers racing on an unseen name all receive the
// winner's client, and the losers' options are discarded without running
// label resolution or any other construction side effect.
//
// Construction failure leaves the name unregistered, so a later call may
// retry with corrected options.
func (r *Registry) CreateClient(name string, ct ConnectionType, opts ClientOptions) (Client, error) {
	return r.create(name, ct, opts, false)
}

// CreateClusterClient is CreateClient for the cluster variant.
func (r *Registry) CreateClusterClient(name string, ct ConnectionType, opts ClientOptions) (Client, error) {
	return r.create(name, ct, opts, true)
}

func (r *Registry) create(name string, ct ConnectionType, opts ClientOptions, cluster bool) (Client, error) {
	if ct != ConnectionTypeGRPC {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConnectionType, ct)
	}

	r.mu.RLock()
	c, ok := r.clients[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check under the write lock: another caller may have won the
	// construction race while we waited.
	if c, ok := r.clients[name]; ok {
		return c, nil
	}

	opts.Labels = labels.Resolve(opts.Labels, opts.Properties)

	var (
		client Client
		err    error
	)
	if cluster {
		client, err = NewClusterClient(name, opts)
	} else {
		client, err = NewSDKClient(name, opts)
	}
	if err != nil {
		return nil, err
	}

	registryLogger.WithField("client", name).Info("created rpc client")
	r.clients[name] = client
	return client, nil
}

// DestroyClient removes the client registered under name and releases its
// resources. The entry is removed before shutdown runs, so even a failed
// shutdown never leaves the registry reporting a live client. Absent names
// are a no-op.
func (r *Registry) DestroyClient(name string) error {
	r.mu.Lock()
	c, ok := r.clients[name]
	if ok {
		delete(r.clients, name)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := c.Shutdown(); err != nil {
		return fmt.Errorf("shutdown rpc client %q: %w", name, err)
	}
	return nil
}

// ShutdownAll destroys every registered client and returns the last shutdown
// error, if any.
func (r *Registry) ShutdownAll() error {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]Client)
	r.mu.Unlock()

	var lastErr error
	for name, c := range clients {
		if err := c.Shutdown(); err != nil {
			lastErr = fmt.Errorf("shutdown rpc client %q: %w", name, err)
		}
	}
	return lastErr
}

// Convenience wrappers preserving the classic construction shapes.

// CreateClientWithLabels constructs or fetches an SDK client with an
// explicit label set only.
func (r *Registry) CreateClientWithLabels(name string, ct ConnectionType, labelSet map[string]string) (Client, error) {
	return r.CreateClient(name, ct, ClientOptions{Labels: labelSet})
}

// CreateClientWithTLS constructs or fetches an SDK client with labels and
// transport security.
func (r *Registry) CreateClientWithTLS(name string, ct ConnectionType, labelSet map[string]string, tls *TLSConfig) (Client, error) {
	return r.CreateClient(name, ct, ClientOptions{Labels: labelSet, TLS: tls})
}

// CreateClientWithProperties constructs or fetches an SDK client, running
// label collection against the supplied payload.
func (r *Registry) CreateClientWithProperties(name string, ct ConnectionType, labelSet map[string]string, props *labels.Properties, tls *TLSConfig) (Client, error) {
	return r.CreateClient(name, ct, ClientOptions{Labels: labelSet, Properties: props, TLS: tls})
}

// CreateClientWithWorkers constructs or fetches an SDK client with an
// in-flight call bound.
func (r *Registry) CreateClientWithWorkers(name string, ct ConnectionType, coreSize, maxSize int, labelSet map[string]string) (Client, error) {
	return r.CreateClient(name, ct, ClientOptions{WorkerCoreSize: coreSize, WorkerMaxSize: maxSize, Labels: labelSet})
}

// CreateClusterClientWithLabels is CreateClientWithLabels for the cluster
// variant.
func (r *Registry) CreateClusterClientWithLabels(name string, ct ConnectionType, labelSet map[string]string) (Client, error) {
	return r.CreateClusterClient(name, ct, ClientOptions{Labels: labelSet})
}

// CreateClusterClientWithTLS is CreateClientWithTLS for the cluster variant.
func (r *Registry) CreateClusterClientWithTLS(name string, ct ConnectionType, labelSet map[string]string, tls *TLSConfig) (Client, error) {
	return r.CreateClusterClient(name, ct, ClientOptions{Labels: labelSet, TLS: tls})
}

// CreateClusterClientWithProperties is CreateClientWithProperties for the
// cluster variant.
func (r *Registry) CreateClusterClientWithProperties(name string, ct ConnectionType, labelSet map[string]string, props *labels.Properties, tls *TLSConfig) (Client, error) {
	return r.CreateClusterClient(name, ct, ClientOptions{Labels: labelSet, Properties: props, TLS: tls})
}

// CreateClusterClientWithWorkers is CreateClientWithWorkers for the cluster
// variant.
func (r *Registry) CreateClusterClientWithWorkers(name string, ct ConnectionType, coreSize, maxSize int, labelSet map[string]string) (Client, error) {
	return r.CreateClusterClient(name, ct, ClientOptions{WorkerCoreSize: coreSize, WorkerMaxSize: maxSize, Labels: labelSet})
}

// Default registry: one per process, initialized on first use.

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry, creating it on first
// use.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// CreateClient constructs or fetches an SDK client in the default registry.
func CreateClient(name string, ct ConnectionType, opts ClientOptions) (Client, error) {
	return DefaultRegistry().CreateClient(name, ct, opts)
}

// CreateClusterClient constructs or fetches a cluster client in the default
// registry.
func CreateClusterClient(name string, ct ConnectionType, opts ClientOptions) (Client, error) {
	return DefaultRegistry().CreateClusterClient(name, ct, opts)
}

// GetClient looks up a client in the default registry.
func GetClient(name string) (Client, bool) {
	return DefaultRegistry().GetClient(name)
}

// AllClientEntries snapshots the default registry.
func AllClientEntries() map[string]Client {
	return DefaultRegistry().AllClientEntries()
}

// DestroyClient removes and shuts down a client in the default registry.
func DestroyClient(name string) error {
	return DefaultRegistry().DestroyClient(name)
}

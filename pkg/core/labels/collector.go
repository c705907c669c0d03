package labels

import (
	"os"
	"strings"
	"sync"

	"rpcreg/pkg/core/logging"
)

var collectorLogger = logging.New("labels")

// Collector contributes dynamically discovered labels. Implementations are
// registered process-wide and consulted in registration order, after the
// payload tier and before process properties and the environment.
type Collector interface {
	// Name identifies the collector in log output.
	Name() string

	// Collect returns the labels this collector contributes. props is the
	// payload the collection was triggered with and may be nil.
	Collect(props *Properties) map[string]string
}

var (
	collectorsMu sync.RWMutex
	collectors   []Collector
)

// RegisterCollector adds a collector to the process-wide chain. Safe for
// concurrent use; typically called from init functions.
func RegisterCollector(c Collector) {
	collectorsMu.Lock()
	defer collectorsMu.Unlock()
	collectors = append(collectors, c)
}

func registeredCollectors() []Collector {
	collectorsMu.RLock()
	defer collectorsMu.RUnlock()
	out := make([]Collector, len(collectors))
	copy(out, collectors)
	return out
}

var (
	procMu    sync.RWMutex
	procProps = make(map[string]string)
)

// SetProcessProperty stores a process-level label property. Process
// properties rank below payload properties and collectors, above the
// environment.
func SetProcessProperty(key, value string) {
	procMu.Lock()
	defer procMu.Unlock()
	procProps[key] = value
}

// ProcessProperty returns a process-level label property.
func ProcessProperty(key string) (string, bool) {
	procMu.RLock()
	defer procMu.RUnlock()
	v, ok := procProps[key]
	return v, ok
}

func processPropertiesSnapshot() map[string]string {
	procMu.RLock()
	defer procMu.RUnlock()
	out := make(map[string]string, len(procProps))
	for k, v := range procProps {
		out[k] = v
	}
	return out
}

// CollectorManager aggregates labels across all tiers. The process holds a
// single manager, created from the first payload seen (see Resolve).
type CollectorManager struct {
	seed *Properties
}

// NewCollectorManager creates a manager seeded with the payload that
// triggered its construction.
func NewCollectorManager(props *Properties) *CollectorManager {
	return &CollectorManager{seed: props}
}

// RefreshAll collects labels for the given payload. Per key, the tiers rank
// payload > registered collectors > process properties > environment; a
// lower tier is consulted only for keys no higher tier supplied.
func (m *CollectorManager) RefreshAll(props *Properties) map[string]string {
	out := make(map[string]string)

	if props != nil {
		for k, v := range props.Snapshot() {
			out[k] = v
		}
	}

	for _, c := range registeredCollectors() {
		for k, v := range safeCollect(c, props) {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}

	for k, v := range processPropertiesSnapshot() {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}

	for k, v := range environmentLabels() {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}

	return out
}

// safeCollect shields the collection pass from a misbehaving collector: a
// panic is logged and that collector's contribution is dropped.
func safeCollect(c Collector, props *Properties) (labels map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			collectorLogger.WithField("collector", c.Name()).
				Errorf("label collector panicked: %v", r)
			labels = nil
		}
	}()
	return c.Collect(props)
}

// environmentLabels extracts labels from RPCREG_LABEL_* environment
// variables, stripping the marker prefix.
func environmentLabels() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, EnvLabelPrefix) {
			continue
		}
		rest := kv[len(EnvLabelPrefix):]
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			continue
		}
		out[rest[:eq]] = rest[eq+1:]
	}
	return out
}

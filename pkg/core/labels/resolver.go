package labels

import "sync/atomic"

// defaultManager holds the process-wide CollectorManager. It is initialized
// at most once, from the first payload seen; the compare-and-swap below is
// the only writer.
var defaultManager atomic.Pointer[CollectorManager]

// managerFor returns the process-wide manager, creating it from props on
// first use. Later payloads do not replace the manager.
func managerFor(props *Properties) *CollectorManager {
	if m := defaultManager.Load(); m != nil {
		return m
	}
	defaultManager.CompareAndSwap(nil, NewCollectorManager(props))
	return defaultManager.Load()
}

// Resolve produces the final label set for a client: if props is non-nil the
// collector chain is consulted, explicit entries win over collected ones, and
// every resulting key is namespaced under AppConnPrefix.
//
// Collection failures never propagate; the explicit set (merged with whatever
// collection succeeded) is used instead.
func Resolve(explicit map[string]string, props *Properties) map[string]string {
	merged := explicit
	if props != nil {
		merged = MergeByOrder(explicit, managerFor(props).RefreshAll(props))
	}
	return PrefixEachKey(merged, AppConnPrefix)
}

// resetForTest clears process-wide resolver state.
func resetForTest() {
	defaultManager.Store(nil)

	collectorsMu.Lock()
	collectors = nil
	collectorsMu.Unlock()

	procMu.Lock()
	procProps = make(map[string]string)
	procMu.Unlock()
}

// ============================================================================
// rpcreg - Process-wide RPC Client Registry
// ============================================================================
//
// Package:     labels
// Description: Connection label collection and merging for RPC clients
// License:     MIT
// ============================================================================

// Package labels assembles the connection labels an RPC client attaches to
// every request. Labels are merged from an explicit caller-supplied set and
// a tiered collector chain (payload properties, registered collectors,
// process properties, environment), then namespaced under AppConnPrefix.
package labels

// AppConnPrefix is the namespace token prepended to every resolved label key
// before the set is handed to a client constructor.
const AppConnPrefix = "app_conn."

// EnvLabelPrefix marks environment variables that contribute labels. The
// variable RPCREG_LABEL_region=eu-1 yields the label region=eu-1.
const EnvLabelPrefix = "RPCREG_LABEL_"

// MergeByOrder merges two label sets. On key conflict the primary value
// wins. Neither input is mutated; nil inputs are treated as empty.
func MergeByOrder(primary, secondary map[string]string) map[string]string {
	out := make(map[string]string, len(primary)+len(secondary))
	for k, v := range secondary {
		out[k] = v
	}
	for k, v := range primary {
		out[k] = v
	}
	return out
}

// PrefixEachKey returns a copy of m with prefix prepended to every key.
func PrefixEachKey(m map[string]string, prefix string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[prefix+k] = v
	}
	return out
}

// ============================================================================
// rpcreg - Process-wide RPC Client Registry
// ============================================================================
//
// Package:     version
// Description: Central version information
// License:     MIT
// ============================================================================

package version

// Version is the library version, set at release time.
const Version = "1.0.0"

// UserAgent returns the user-agent string announced on every channel the
// registry constructs.
func UserAgent() string {
	return "rpcreg/" + Version
}

// Package version provides version information for the price-oracle application.
package version

// Version is the current version of the price-oracle application.
const Version = "0.3.0"

// AgentString returns the full agent string with versioning, used as the
// User-Agent for outbound provider requests.
func AgentString() string {
	return "price-oracle/v" + Version
}

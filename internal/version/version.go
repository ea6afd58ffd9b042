// Package version holds the build identity of the processing tier.
package version

// Version is the processing tier's own release version, reported in AppConfig
// alongside the node's version and the configured network name.
const Version = "0.1.0"

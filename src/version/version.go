// Package version contains the tern version number
package version

// VERSION is the current tern version
const VERSION = "0.4.1"

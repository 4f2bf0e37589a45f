// Package api defines the wire types served by the daemon's local HTTP API
// and the client the CLI uses to consume it.
package api

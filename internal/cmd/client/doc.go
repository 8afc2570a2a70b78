// Package clientcmd implements the CLI commands that talk to a running
// DriftQ server over its HTTP API.
package clientcmd

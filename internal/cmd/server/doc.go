// Package serverrun starts the DriftQ server process and blocks until
// shutdown.
package serverrun

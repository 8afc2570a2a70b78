// Package httpserver exposes the DriftQ runtime over HTTP: queue operations
// under /v1/queues, an SSE subscribe stream, and a health endpoint.
package httpserver

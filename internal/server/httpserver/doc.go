// Package httpserver serves the operational HTTP endpoints of `diskcache
// serve`: health and readiness checks, Prometheus metrics and a JSON view of
// store statistics.
//
// The listener is meant for a local address. It exposes no cache contents.
package httpserver

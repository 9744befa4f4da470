// Package http implements the daemon's HTTP API.
//
// It exposes the Prometheus metrics endpoint, the last run of every
// configured pair and an endpoint to request an immediate run. Requests are
// tagged with a trace id and access-logged before they reach the handlers.
package http

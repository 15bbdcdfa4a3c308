// Package server implements the HTTP API: joke and recording coaching
// endpoints plus health, configuration, statistics and Prometheus metrics.
package server

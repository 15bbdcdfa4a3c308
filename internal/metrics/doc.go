// Package metrics defines the Prometheus metrics exported by the coach.
package metrics

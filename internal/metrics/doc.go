// Package metrics defines the Prometheus instruments of the responder service.
//
// A nil *Metrics is valid and records nothing, so components can be built in
// tests without a registry.
package metrics

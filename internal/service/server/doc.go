// Package server runs the sos-responder service process.
//
// Run loads the settings, opens the store and the optional Redis and NATS
// connections once, builds every component on top of them and serves the
// gRPC API, the HTTP API and the alert-created event consumer until the
// context is canceled. Shutdown stops the listeners first and then waits for
// escalations that are still running.
package server

// Package integration holds end-to-end tests that run the real sos-server
// against a temporary database and drive it through its clients.
package integration

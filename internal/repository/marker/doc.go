// Package marker records that fan-out was attempted for an alert, so a
// duplicate alert-created event does not send the same alert twice.
//
// RedisMarker shares the marker between service instances; MemoryMarker is
// for a single process.
package marker

// Package events consumes alert-created events from NATS.
//
// Each message carries one alert as JSON. Service instances share a queue
// group, so every event is handled by one of them. When the publisher used
// request/reply, the reply reports whether the escalation succeeded and the
// publisher may retry on failure.
package events

// Package message renders the human-readable bodies sent when an alert
// falls back to SMS, plus the push notification title and body.
//
// Everything here is a pure function of its inputs.
package message

// Package trigger runs alert-created handling as independent units of work.
//
// Every alert gets its own goroutine. A started escalation is not cancelled
// when the triggering request or the server context ends; Wait blocks until
// all of them have finished.
package trigger

// Package escalation runs the push-then-SMS cascade for a newly created alert.
//
// One call to Engine.HandleAlertCreated is one unit of work: resolve the
// on-duty responders and their push addresses, try a single batched push, and
// only when no address accepted it write SMS records for responder and
// trusted-contact phones followed by a fan-out summary on the alert.
package escalation

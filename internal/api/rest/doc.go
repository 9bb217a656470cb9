// Package rest exposes the responder service over HTTP with gin.
//
// Routes:
//
//	GET  /healthz                      store reachability
//	GET  /metrics                      Prometheus exposition
//	POST /v1/alerts                    raise an alert as the caller, escalated in the background
//	POST /v1/events/alert-created      alert-created webhook, escalated before the response
//	POST /v1/alerts/:id/claim          claim an alert as the caller
//	PUT  /v1/users/:id/role            assign a role, admins only
//
// Callers authenticate with "Authorization: Bearer <jwt>". The webhook is
// authenticated with a shared secret in the X-Webhook-Token header instead.
package rest

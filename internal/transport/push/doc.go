// Package push hands batched push notifications to the push gateway.
//
// The gateway listens on a NATS subject and answers every request with the
// number of addresses that accepted delivery.
package push

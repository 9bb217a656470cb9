// Package common holds helpers shared by the client binaries.
//
// It provides a gRPC client for the responder API with per-call timeouts and
// bearer-token authentication, and helpers to locate the caller's token.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

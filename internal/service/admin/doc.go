// Package admin implements the sos-admin maintenance commands.
//
// They operate on the directory store directly: creating users, granting
// roles, registering push addresses and trusted contacts, issuing identity
// tokens for clients and inspecting what happened to an alert. Role grants
// here bypass the admin email policy, which only gates the network API.
package admin

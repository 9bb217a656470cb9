// Package sqlite implements the document store behind the SOS service on
// SQLite.
//
// The Store holds the identity directory (users, push addresses, trusted
// contacts), alerts, the SMS outbox and pairings. Every transaction is opened
// with BEGIN IMMEDIATE, so a claim's read-then-write unit holds the database
// write lock from its first read until commit.
package sqlite

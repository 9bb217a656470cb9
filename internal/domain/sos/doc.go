// Package sos contains core domain types for safety alerts.
//
// It defines Alert (a raised safety request and its lifecycle), the directory
// views this service reads (User, Responder, Contact), the records it writes
// (OutboundMessage, Pairing) and the error taxonomy shared by every transport.
package sos

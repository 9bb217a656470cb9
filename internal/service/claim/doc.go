// Package claim lets an on-duty responder take ownership of an open alert.
//
// The caller's identity is checked first; the transition itself is a single
// store transaction, so of any number of concurrent claims on one alert at
// most one succeeds and the rest fail with sos.ErrAlreadyClaimed.
package claim

// Package client implements the sos-claim command.
//
// The command claims one alert on behalf of the responder owning the token.
// Unavailable servers are retried until the context ends or the attempt
// budget runs out; every other failure, an alert already taken included, is
// final.
package client

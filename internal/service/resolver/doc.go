// Package resolver determines who is told about an alert: the on-duty
// responders in scope, their push addresses and the originator's trusted
// contacts. It only reads the directory.
package resolver

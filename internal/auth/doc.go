// Package auth verifies caller identities carried as HS256 JSON Web Tokens
// and issues such tokens for operators.
//
// The subject is the directory uid; "role" and "email" claims carry the
// role and the verified address.
package auth

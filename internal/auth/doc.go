// Package auth mints and validates short-lived scoped tokens: upload tokens
// that the queue fetches right before each transfer starts, and control
// tokens that authorize calls to the daemon's API.
package auth

// Package api implements the optional HTTP decision service (Gin-based).
// Every request is its own caller context: it is evaluated against a fresh
// in-memory identity store and nothing is shared between requests except
// the immutable registry.
package api

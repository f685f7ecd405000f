// Package ratelimit provides per-client token-bucket rate limiting
// middleware for the Gin decision service, with automatic stale-entry
// cleanup.
package ratelimit

// Package policy decides, per caller identity, which device identity
// override profile to write and whether key attestation and certain feature
// queries must be refused for that caller.
package policy

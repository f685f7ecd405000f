// Package props models the device identity fields that can be overridden,
// the immutable override profiles that group replacement values, and the
// sink through which an applied profile reaches the host identity store.
package props

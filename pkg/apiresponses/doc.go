// Package apiresponses provides the standardized JSON error shape and
// response helpers shared by the decision service and its middleware.
package apiresponses

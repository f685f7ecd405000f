// Package cli implements propsctl, the command line front end of the
// override policy. It evaluates identities locally, inspects the configured
// profiles and match sets, and runs the HTTP decision service.
package cli

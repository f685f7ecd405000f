// Package config loads the override engine configuration from a YAML file,
// applies environment overrides, and fills defaults for the decision
// service and the audit trail.
package config

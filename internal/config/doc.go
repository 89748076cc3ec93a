// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Feed credentials and endpoints can also be overridden directly from the
// environment with BENZINGA_* variables (for example BENZINGA_API_KEY).
package config

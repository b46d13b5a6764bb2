// Package config defines the diskcache configuration.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets for logs and `config show` style output
//   - build.go: turning a Config into storage and logger settings
//
// Configuration is loaded via internal/infra/confloader from defaults, a
// YAML file and DISKCACHE_ environment variables, in that order.
package config

// Package command defines the diskcache command line using urfave/cli/v2.
//
//   - root.go: the application, global flags, config and logger setup
//   - entry.go: put, get, rm, ttl and ls
//   - admin.go: stat, evict-all and keygen
//   - config.go: config show and config validate
//   - serve.go: the long-running metrics and maintenance process
//   - version.go: version
//
// Commands load the configuration once in the app's Before hook, open the
// store for the duration of one action and format results with
// internal/cli/output.
package command

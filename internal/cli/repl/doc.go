// Package repl provides the interactive shell of the diskcache CLI.
//
//   - repl.go: read loop, built-in commands and dispatch
//   - split.go: quote-aware splitting of input lines
//   - completer.go: command name suggestions
//   - history.go: command history persistence
//
// The loop itself knows nothing about the cache; every line is handed to an
// Executor, which the CLI backs with its own command set.
package repl

// Package confloader loads configuration from layered sources.
//
// It wraps koanf. Sources are applied in increasing priority:
//
//  1. Defaults (the target struct's initial values)
//  2. A YAML configuration file
//  3. Environment variables (DISKCACHE_SECTION_KEY)
//  4. Explicit overrides, typically from command-line flags
//
// Watcher reports changes to the configuration file through fsnotify, with
// bursts of events coalesced by a rate limiter.
package confloader

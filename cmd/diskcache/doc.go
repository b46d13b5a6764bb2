// Package main provides the entry point for diskcache.
//
// diskcache opens a cache directory and operates on it:
//
//   - Entry access (put, get, rm, ttl, ls)
//   - Administration (stat, evict-all, keygen)
//   - Configuration inspection (config show, config validate)
//   - A long-running serve mode exposing health and Prometheus metrics
//
// Usage:
//
//	diskcache --dir /var/cache/app put greeting hello --ttl 1h
//	diskcache --dir /var/cache/app get greeting
//	diskcache -c diskcache.yaml serve
package main

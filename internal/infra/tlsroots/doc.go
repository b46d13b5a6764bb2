// Package tlsroots provides TLS material for the serve listener.
//
//   - roots.go: client CA pools loaded from PEM files and directories
//   - watcher.go: a certificate/key pair reloaded when its files change
//
// ServerConfig combines both into a *tls.Config; without a client CA pool
// clients are not asked for certificates.
package tlsroots

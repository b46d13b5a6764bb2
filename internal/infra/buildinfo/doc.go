// Package buildinfo exposes version information injected at build time.
//
//	go build -ldflags "-X github.com/yndnr/diskcache-go/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/yndnr/diskcache-go/internal/infra/buildinfo.Commit=abc123"
//
// Values not injected fall back to what runtime/debug reports for the
// binary, so `go install` builds still show a module version and VCS
// revision.
package buildinfo

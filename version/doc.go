// Package version reports the asynchttp build and derives the default
// User-Agent sent by clients.
//
// Version and commit are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/asynchttp/version.Version=1.4.0"
//
// Without ldflags the commit falls back to the VCS stamp in the binary's
// build info.
package version

// Package version reports the mediaflow build, set at compile time:
//
//	go build -ldflags "-X github.com/kbukum/mediaflow/version.Version=1.2.0" ./cmd/mediaflow
//
// Missing fields are filled from the module's embedded VCS build info.
package version

// Package build holds version information injected via ldflags:
//
//	go build -ldflags "-X github.com/haivivi/wonderchat/cmd/wonderchat/internal/build.Version=v0.3.0 \
//	  -X github.com/haivivi/wonderchat/cmd/wonderchat/internal/build.Commit=$(git rev-parse --short HEAD)"
package build

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("wonderchat %s (%s) built %s %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}

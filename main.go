package main

import (
	"os"

	"github.com/tphakala/geocapture/cmd"
	"github.com/tphakala/geocapture/internal/buildinfo"
)

// Set with -ldflags "-X main.version=... -X main.buildDate=... -X main.commit=..."
var (
	version   string
	buildDate string
	commit    string
)

func main() {
	build := &buildinfo.Context{Version: version, BuildDate: buildDate, Commit: commit}

	if err := cmd.RootCommand(build).Execute(); err != nil {
		os.Exit(1)
	}
}

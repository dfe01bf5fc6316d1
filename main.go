package main

import (
	"os"

	"github.com/birdnetpi/speciestools/cmd"
	"github.com/birdnetpi/speciestools/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	os.Exit(cmd.Execute(buildinfo.New(version, buildDate)))
}

// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import "fmt"

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup from linker flags.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// New returns build metadata, substituting placeholders for values the
// linker did not set.
func New(version, buildDate string) *Context {
	if version == "" {
		version = "dev"
	}
	if buildDate == "" {
		buildDate = "unknown"
	}
	return &Context{Version: version, BuildDate: buildDate}
}

// Release is the release identifier reported to telemetry.
func (c *Context) Release() string {
	return fmt.Sprintf("speciestools@%s", c.Version)
}

// String renders the version line printed by the CLI.
func (c *Context) String() string {
	return fmt.Sprintf("speciestools %s (built %s)", c.Version, c.BuildDate)
}

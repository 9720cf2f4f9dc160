// Package buildinfo holds build-time metadata injected with -ldflags.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not provide.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	Version   string // git version tag
	BuildDate string
	Commit    string
}

func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

func (c *Context) GetCommit() string {
	if c == nil || c.Commit == "" {
		return UnknownValue
	}
	return c.Commit
}

// Release is the identifier reported to Sentry, e.g. "geocapture@1.4.0".
func (c *Context) Release() string {
	return "geocapture@" + c.GetVersion()
}

func (c *Context) String() string {
	return fmt.Sprintf("geocapture %s (commit %s, built %s)", c.GetVersion(), c.GetCommit(), c.GetBuildDate())
}

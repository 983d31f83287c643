// Package buildinfo holds build-time metadata kept apart from user configuration.
package buildinfo

import "github.com/google/uuid"

// UnknownValue is reported for metadata that was not stamped at build time.
const UnknownValue = "unknown"

// Stamped by the linker:
//
//	go build -ldflags "-X github.com/trapwatch/trapwatch/internal/buildinfo.version=v1.2.0"
var (
	version   string
	buildDate string
)

// BuildInfo provides read access to build metadata.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetInstanceID() string
}

// Context is the build metadata of the running binary plus a per-process
// instance ID used in telemetry and log correlation.
type Context struct {
	Version    string
	BuildDate  string
	InstanceID string
}

// NewContext creates a Context from explicit values.
func NewContext(version, buildDate, instanceID string) *Context {
	return &Context{
		Version:    version,
		BuildDate:  buildDate,
		InstanceID: instanceID,
	}
}

// Current returns the linker stamped metadata with a fresh instance ID.
func Current() *Context {
	return NewContext(version, buildDate, uuid.NewString())
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion implements BuildInfo.
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate implements BuildInfo.
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// GetInstanceID implements BuildInfo.
func (c *Context) GetInstanceID() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.InstanceID)
}

// String formats the metadata for version output.
func (c *Context) String() string {
	return "trapwatch " + c.GetVersion() + " (built " + c.GetBuildDate() + ")"
}

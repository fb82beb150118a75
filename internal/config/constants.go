package config

import "strings"

// Version is the soli release, overridable with -ldflags "-X".
var Version = "0.1.0"

const SourceFileExt = ".sl"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".sl", ".soli"}

// BytecodeFileExt marks files written by `soli build`
const BytecodeFileExt = ".slc"

// ConfigFileNames are searched, in order, in each directory FindConfig visits.
var ConfigFileNames = []string{"soli.yaml", "soli.yml", "soli.toml"}

// Defaults
const (
	DefaultMaxFrames     = 1024
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultCachePath     = ".soli/cache.db"
	DefaultMemoryEntries = 256
	DefaultServerAddr    = "127.0.0.1:7420"
	DefaultTimeoutMS     = 0 // no deadline
)

// HasSourceExt reports whether path ends in a recognized source extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

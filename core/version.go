package core

// Build information, injected with ldflags:
//
//	go build -ldflags "-X jpegsize/core.Version=$(git describe --tags --always) \
//	    -X jpegsize/core.GitCommit=$(git rev-parse --short HEAD) \
//	    -X jpegsize/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the application version string. It is stored with
// every run so results can be traced back to the binary that produced them.
func GetVersion() string {
	return Version
}

// GetVersionInfo returns version, build time and commit on one line.
//
// Example:
//
//	fmt.Println("jpegsize", core.GetVersionInfo())
//	// jpegsize v1.0.0 (built 2024-01-15T10:30:00Z, commit abc1234)
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}

package panelstart

// Version is the current version of the launcher
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// SidecarAPI is the sidecar REST API version the probe targets
	SidecarAPI string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:    Version,
		SidecarAPI: "v4",
	}
}

package version

import "runtime/debug"

// Version is the current application version.
// This is a var (not const) so it can be overridden at build time via:
//
//	go build -ldflags "-X github.com/vanderheijden86/mapdiff/pkg/version.Version=v1.2.3"
var Version = "v0.1.0"

// String returns Version, with the VCS revision appended when the binary
// was built from a checkout.
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return Version + " (" + s.Value[:7] + ")"
		}
	}
	return Version
}

// UserAgent is the default User-Agent sent with snapshot requests.
func UserAgent() string {
	return "mapdiff/" + Version
}

// Package buildinfo reports the version stamps of the running binary.
// Release builds set them with -ldflags:
//
//	-X 'github.com/m3rciful/storebot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/storebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/storebot/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build stamp.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Read returns the ldflags stamps, filling an unset commit or date from the
// VCS data the go tool embeds in module builds.
func Read() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if info.Commit != "" && info.Date != "" {
		return info
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.Date == "":
			info.Date = s.Value
		}
	}
	return info
}

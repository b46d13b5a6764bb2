package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables (set via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version       string `json:"version" yaml:"version"`
	Commit        string `json:"commit" yaml:"commit"`
	BuildTime     string `json:"build_time" yaml:"build_time"`
	GoVersion     string `json:"go_version" yaml:"go_version"`
	Platform      string `json:"platform" yaml:"platform"`
	JournalFormat int    `json:"journal_format" yaml:"journal_format"`
}

// Get returns the build information. journalFormat is the on-disk journal
// format version supported by this binary.
func Get(journalFormat int) Info {
	info := Info{
		Version:       Version,
		Commit:        Commit,
		BuildTime:     BuildTime,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		JournalFormat: journalFormat,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// String returns a one-line version string.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (%s) built at %s with %s for %s", i.Version, commit, i.BuildTime, i.GoVersion, i.Platform)
}

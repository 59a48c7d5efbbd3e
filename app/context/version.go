package context

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// VersionInfo contains build information about the application.
type VersionInfo struct {
	Semantic  string
	Commit    string
	Dirty     bool
	GoVersion string
}

// String returns the version in the "<semver> (commit <hash>[-dirty], <go>)"
// format, omitting unknown parts.
func (v *VersionInfo) String() string {
	var sb strings.Builder
	sb.WriteString(v.Semantic)

	var meta []string
	if v.Commit != "" {
		commit := v.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if v.Dirty {
			commit += "-dirty"
		}
		meta = append(meta, "commit "+commit)
	}
	if v.GoVersion != "" {
		meta = append(meta, v.GoVersion)
	}
	if len(meta) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(meta, ", "))
	}

	return sb.String()
}

// GetVersion reads the version information embedded in the binary.
func GetVersion() (*VersionInfo, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("failed reading build information")
	}

	v := &VersionInfo{Semantic: bi.Main.Version, GoVersion: bi.GoVersion}
	if v.Semantic == "" {
		v.Semantic = "(devel)"
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Commit = s.Value
		case "vcs.modified":
			v.Dirty = s.Value == "true"
		}
	}

	return v, nil
}

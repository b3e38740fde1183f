package version

import (
	"github.com/earthboundkid/versioninfo/v2"
)

// GetVersion returns the module version with the short commit hash when the
// binary was built from a VCS checkout
func GetVersion() string {
	return versioninfo.Short()
}

// GetFullVersion returns version with commit info
func GetFullVersion() string {
	ver := versioninfo.Version
	if ver == "" || ver == "(devel)" || ver == "unknown" {
		ver = "dev"
	}
	if versioninfo.Revision == "" || versioninfo.Revision == "unknown" {
		return ver
	}

	rev := versioninfo.Revision
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if versioninfo.DirtyBuild {
		rev += "-dirty"
	}
	return ver + " (commit: " + rev + ")"
}

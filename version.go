package citheater

import "runtime/debug"

// BinaryVersion is the version of the output format.
const BinaryVersion = 1

// BinaryGitHash is the Git hash of the build; set with
// -ldflags "-X github.com/rvishravars/citheater.BinaryGitHash=...".
var BinaryGitHash = "<unknown>"

func init() {
	if BinaryGitHash != "<unknown>" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			BinaryGitHash = setting.Value
			return
		}
	}
}

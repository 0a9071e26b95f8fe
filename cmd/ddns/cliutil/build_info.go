package cliutil

import (
	"fmt"
	"runtime"
)

type BuildInfo struct {
	GoOS      string `json:"go_os"`
	GoVersion string `json:"go_version"`
	GoArch    string `json:"go_arch"`
	BuildType string `json:"build_type"`
	Version   string `json:"version"`
}

func GetBuildInfo(buildType, version string) *BuildInfo {
	return &BuildInfo{
		GoOS:      runtime.GOOS,
		GoVersion: runtime.Version(),
		GoArch:    runtime.GOARCH,
		BuildType: buildType,
		Version:   version,
	}
}

func (bi *BuildInfo) GetBuildTypeMsg() string {
	if bi.BuildType == "" {
		return ""
	}
	return fmt.Sprintf(" with %s", bi.BuildType)
}

func (bi *BuildInfo) String() string {
	return fmt.Sprintf("ddns %s (%s %s/%s%s)", bi.Version, bi.GoVersion, bi.GoOS, bi.GoArch, bi.GetBuildTypeMsg())
}

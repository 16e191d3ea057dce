// SPDX-License-Identifier: MIT
//
// Package build carries the binary's identity. Name, build time, commit and
// version are injected with -ldflags at link time, for example:
//
//	go build -ldflags "-X soundhub/pkg/build.buildName=soundhub \
//	    -X soundhub/pkg/build.buildVersion=v0.3.0 ..."
//
// Development builds run without them and report "dev".
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown in the CLI help.
const Description = "Channel-based sound playback with spectral analysis and socket broadcasts"

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the info for --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var info = devInfo()

func devInfo() *Info {
	return &Info{
		Name:        "soundhub",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags values into the build info. It returns an
// error naming every missing value and leaves the development info in place.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, errors.New("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, errors.New("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, errors.New("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, errors.New("BuildVersion is required"))
	}
	if len(errs) > 0 {
		info = devInfo()
		return errors.Join(errs...)
	}

	info = &Info{
		Name:        buildName,
		Description: Description,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
	}
	return nil
}

// Get returns the current build info.
func Get() *Info {
	return info
}

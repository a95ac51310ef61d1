// Package update checks for and installs new calculator releases.
package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
)

// Repository is the GitHub slug releases are published under.
const Repository = "meandmytram/pybind-example"

// InstallMethod describes how the running binary was installed.
type InstallMethod int

const (
	InstallDirect InstallMethod = iota
	InstallHomebrew
	InstallGoInstall
)

func (m InstallMethod) String() string {
	switch m {
	case InstallHomebrew:
		return "homebrew"
	case InstallGoInstall:
		return "go install"
	default:
		return "direct"
	}
}

// Release is the subset of release metadata the CLI reports.
type Release struct {
	Version string
	URL     string
}

// DetectInstallMethod inspects the executable path.
func DetectInstallMethod() InstallMethod {
	exe, err := os.Executable()
	if err != nil {
		return InstallDirect
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return installMethodForPath(exe, os.Getenv("GOPATH"))
}

func installMethodForPath(exe, gopath string) InstallMethod {
	exe = filepath.ToSlash(exe)
	if strings.Contains(exe, "/Cellar/") || strings.Contains(exe, "/homebrew/") {
		return InstallHomebrew
	}
	if gopath != "" && strings.HasPrefix(exe, filepath.ToSlash(filepath.Join(gopath, "bin"))+"/") {
		return InstallGoInstall
	}
	if strings.Contains(exe, "/go/bin/") {
		return InstallGoInstall
	}
	return InstallDirect
}

// CheckForUpdate reports the latest release and whether it is newer than current.
func CheckForUpdate(ctx context.Context, current string) (*Release, bool, error) {
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(Repository))
	if err != nil {
		return nil, false, fmt.Errorf("detect latest release: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	release := &Release{Version: latest.Version(), URL: latest.URL}
	if isDevVersion(current) {
		return release, true, nil
	}
	return release, !latest.LessOrEqual(strings.TrimPrefix(current, "v")), nil
}

// Update replaces the running executable with the latest release.
func Update(ctx context.Context, current string) (*Release, error) {
	if isDevVersion(current) {
		current = "0.0.0"
	}
	latest, err := selfupdate.UpdateSelf(ctx, strings.TrimPrefix(current, "v"), selfupdate.ParseSlug(Repository))
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	if latest == nil {
		return nil, errors.New("update: no release found")
	}
	return &Release{Version: latest.Version(), URL: latest.URL}, nil
}

func isDevVersion(v string) bool {
	return v == "" || v == "dev"
}

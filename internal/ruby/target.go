// SPDX-License-Identifier: MPL-2.0

package ruby

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

var (
	// ErrUnknownStack is returned when a legacy stack name maps to no
	// supported target.
	ErrUnknownStack = errors.New("unknown stack")
	// ErrUnknownDistro is returned when a distribution name and version
	// combination is not supported.
	ErrUnknownDistro = errors.New("unknown distribution")
)

// Target identifies the OS a layer's contents were built for. Compiled
// runtimes and native gem extensions are only valid on the exact
// distribution, version, and CPU architecture they were produced for.
type Target struct {
	DistroName      string
	DistroVersion   string
	CPUArchitecture string
}

// distroStacks maps supported distribution releases to the legacy stack
// names that older metadata schemas recorded.
var distroStacks = []struct {
	name, version, stack string
}{
	{"ubuntu", "20.04", "heroku-20"},
	{"ubuntu", "22.04", "heroku-22"},
}

// StackName returns the legacy stack name for the target.
func (t Target) StackName() (string, error) {
	for _, entry := range distroStacks {
		if entry.name == t.DistroName && entry.version == t.DistroVersion {
			return entry.stack, nil
		}
	}
	return "", fmt.Errorf("%w: no stack for %s-%s (supported: %s)",
		ErrUnknownDistro, t.DistroName, t.DistroVersion, supportedDistros())
}

// OSDistribution returns the space-joined "name version" form recorded by
// the newest gems metadata schema.
func (t Target) OSDistribution() string {
	return t.DistroName + " " + t.DistroVersion
}

// TargetFromStack converts a legacy stack name into a target. Stacks
// predate multi-architecture support, so the architecture is always amd64.
func TargetFromStack(stack string) (Target, error) {
	for _, entry := range distroStacks {
		if entry.stack == stack {
			return Target{
				DistroName:      entry.name,
				DistroVersion:   entry.version,
				CPUArchitecture: "amd64",
			}, nil
		}
	}
	return Target{}, fmt.Errorf("%w: cannot convert stack %q into a target OS (supported: %s)",
		ErrUnknownStack, stack, supportedStacks())
}

// DetectTarget identifies the build host from an os-release file
// (normally /etc/os-release) and the running process's architecture.
func DetectTarget(osReleasePath string) (Target, error) {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return Target{}, fmt.Errorf("detect build target: %w", err)
	}
	defer f.Close()

	var name, version string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "ID":
			name = value
		case "VERSION_ID":
			version = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Target{}, fmt.Errorf("detect build target: %w", err)
	}
	if name == "" || version == "" {
		return Target{}, fmt.Errorf("detect build target: %s has no ID/VERSION_ID fields", osReleasePath)
	}

	return Target{
		DistroName:      name,
		DistroVersion:   version,
		CPUArchitecture: runtime.GOARCH,
	}, nil
}

func supportedDistros() string {
	var names []string
	for _, entry := range distroStacks {
		names = append(names, entry.name+"-"+entry.version)
	}
	return strings.Join(names, ", ")
}

func supportedStacks() string {
	var names []string
	for _, entry := range distroStacks {
		names = append(names, entry.stack)
	}
	return strings.Join(names, ", ")
}

// SPDX-License-Identifier: MPL-2.0

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"rubypack/internal/envreg"
)

const (
	// BuildScriptName is the script sourced by subsequent legacy build steps.
	BuildScriptName = "export"
	// ProfileDir holds scripts sourced when the application boots.
	ProfileDir = ".profile.d"
	// ProfileScriptName is this buildpack's boot-time script.
	ProfileScriptName = "ruby.sh"

	// homePlaceholder replaces the literal app root in runtime scripts so the
	// values stay valid wherever the slug is unpacked.
	homePlaceholder = "$HOME"
)

// WriteLegacy renders the export plan into the two legacy-interface scripts
// under appRoot: `export` with build-time values, and `.profile.d/ruby.sh`
// with the same values made portable for runtime (app-root paths rewritten to
// $HOME, defaults wrapped so a user-supplied value wins).
func WriteLegacy(plan []envreg.Contribution, appRoot string) error {
	build := renderBuildScript(plan)
	if err := validateScript(BuildScriptName, build); err != nil {
		return err
	}
	runtime := renderRuntimeScript(plan, appRoot)
	if err := validateScript(ProfileScriptName, runtime); err != nil {
		return err
	}

	buildPath := filepath.Join(appRoot, BuildScriptName)
	if err := os.WriteFile(buildPath, []byte(build), 0o644); err != nil {
		return fmt.Errorf("write build export script %s: %w", buildPath, err)
	}

	profileDir := filepath.Join(appRoot, ProfileDir)
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir %s: %w", profileDir, err)
	}
	profilePath := filepath.Join(profileDir, ProfileScriptName)
	if err := os.WriteFile(profilePath, []byte(runtime), 0o644); err != nil {
		return fmt.Errorf("write profile script %s: %w", profilePath, err)
	}
	return nil
}

func renderBuildScript(plan []envreg.Contribution) string {
	var b strings.Builder
	for _, c := range plan {
		switch c.Strategy {
		case envreg.Prepend:
			fmt.Fprintf(&b, "export %s=\"%s:$%s\"\n", c.Key, strings.Join(c.Values, ":"), c.Key)
		default:
			fmt.Fprintf(&b, "export %s=\"%s\"\n", c.Key, c.Values[0])
		}
	}
	return b.String()
}

func renderRuntimeScript(plan []envreg.Contribution, appRoot string) string {
	var b strings.Builder
	for _, c := range plan {
		switch c.Strategy {
		case envreg.Prepend:
			portable := make([]string, len(c.Values))
			for i, v := range c.Values {
				portable[i] = portablePath(v, appRoot)
			}
			fmt.Fprintf(&b, "export %s=\"%s:$%s\"\n", c.Key, strings.Join(portable, ":"), c.Key)
		case envreg.Default:
			fmt.Fprintf(&b, "export %s=\"${%s:-%s}\"\n", c.Key, c.Key, portablePath(c.Values[0], appRoot))
		default:
			fmt.Fprintf(&b, "export %s=\"%s\"\n", c.Key, portablePath(c.Values[0], appRoot))
		}
	}
	return b.String()
}

// portablePath rewrites a literal app-root prefix to the home placeholder.
func portablePath(value, appRoot string) string {
	if appRoot == "" {
		return value
	}
	if value == appRoot {
		return homePlaceholder
	}
	if strings.HasPrefix(value, appRoot+string(filepath.Separator)) {
		return homePlaceholder + value[len(appRoot):]
	}
	return value
}

// validateScript rejects generated output that does not parse as POSIX shell,
// which would otherwise poison every later build step that sources it.
func validateScript(name, script string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(strings.NewReader(script), name); err != nil {
		return fmt.Errorf("generated %s script is not valid shell: %w", name, err)
	}
	return nil
}

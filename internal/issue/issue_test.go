// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestLookup_EveryIdHasRemediationText(t *testing.T) {
	ids := []Id{
		GemfileLockNotFoundId,
		GemfileLockParseErrorId,
		RubyInstallFailedId,
		BundlerInstallFailedId,
		BundleInstallFailedId,
		RuntimeArtifactNotFoundId,
		MetadataStoreIOId,
		EnvContributionConflictId,
		ConfigLoadFailedId,
	}
	for _, id := range ids {
		iss := Lookup(id)
		if iss == nil {
			t.Errorf("Lookup(%d) = nil", id)
			continue
		}
		if iss.Id() != id {
			t.Errorf("Lookup(%d).Id() = %d", id, iss.Id())
		}
		if strings.TrimSpace(string(iss.MarkdownMsg())) == "" {
			t.Errorf("issue %d has empty remediation text", id)
		}
	}
}

func TestLookup_UnknownId(t *testing.T) {
	if got := Lookup(Id(9999)); got != nil {
		t.Errorf("Lookup(9999) = %v, want nil", got)
	}
}

func TestRender_IncludesDocLinks(t *testing.T) {
	orig := render
	defer func() { render = orig }()
	var rendered string
	render = func(md string) (string, error) {
		rendered = md
		return md, nil
	}

	iss := Lookup(GemfileLockNotFoundId)
	if _, err := iss.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(rendered, "bundler.io") {
		t.Errorf("rendered markdown missing doc link:\n%s", rendered)
	}
	if !strings.Contains(rendered, "See also") {
		t.Errorf("rendered markdown missing See also section:\n%s", rendered)
	}
}

func TestActionableError_MessageShape(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")
	err := NewErrorContext().
		WithOperation("install ruby").
		WithResource("ruby-3.2.1.tgz").
		WithSuggestion("Check the artifact directory").
		WithIssue(RubyInstallFailedId).
		Wrap(cause).
		Build()

	want := "failed to install ruby: ruby-3.2.1.tgz: exit status 1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not see the wrapped cause")
	}
	if !strings.Contains(err.Detail(), "Check the artifact directory") {
		t.Errorf("Detail() missing suggestion: %q", err.Detail())
	}
	if err.IssueId != RubyInstallFailedId {
		t.Errorf("IssueId = %d", err.IssueId)
	}
}

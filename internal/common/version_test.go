package common

import (
	"strings"
	"testing"
)

func resetVersionVars(t *testing.T) {
	t.Helper()
	origVersion, origBuild, origCommit := Version, Build, GitCommit
	Version, Build, GitCommit = "dev", "unknown", "unknown"
	t.Cleanup(func() {
		Version, Build, GitCommit = origVersion, origBuild, origCommit
	})
}

func TestLoadVersionFrom_FillsDefaults(t *testing.T) {
	resetVersionVars(t)

	loadVersionFrom(strings.NewReader("version: 1.4.2\nbuild: 2026-08-01\ncommit: abc1234\n"))

	if Version != "1.4.2" {
		t.Errorf("expected version 1.4.2, got %s", Version)
	}
	if Build != "2026-08-01" {
		t.Errorf("expected build 2026-08-01, got %s", Build)
	}
	if GitCommit != "abc1234" {
		t.Errorf("expected commit abc1234, got %s", GitCommit)
	}
}

func TestLoadVersionFrom_DoesNotOverrideLdflags(t *testing.T) {
	resetVersionVars(t)
	Version = "2.0.0"

	loadVersionFrom(strings.NewReader("version: 1.0.0\n"))

	if Version != "2.0.0" {
		t.Errorf("file value should not override injected version, got %s", Version)
	}
}

func TestLoadVersionFrom_SkipsCommentsAndJunk(t *testing.T) {
	resetVersionVars(t)

	loadVersionFrom(strings.NewReader("# release metadata\n\nnot a pair\nversion: 0.9.0\n"))

	if Version != "0.9.0" {
		t.Errorf("expected version 0.9.0, got %s", Version)
	}
	if Build != "unknown" || GitCommit != "unknown" {
		t.Errorf("build/commit should keep defaults, got %s / %s", Build, GitCommit)
	}
}

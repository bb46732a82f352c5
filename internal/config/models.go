package config

import "fmt"

// Pipeline is a validated branch-gated load pipeline
type Pipeline struct {
	Name           string
	TriggerBranch  string
	CoreVersion    string
	Secret         string
	WorkingDir     string
	Invocation     []string
	Targets        []Target
	ConnectTimeout int // seconds
	CommandTimeout int // seconds, 0 means no timeout
}

// Target is a remote host/user pair the load command runs against
type Target struct {
	Name           string `yaml:"name"`
	Host           string `yaml:"host"`
	User           string `yaml:"user"`
	Port           int    `yaml:"port"`
	IdentityFile   string `yaml:"identity_file"`
	KnownHostsFile string `yaml:"known_hosts"`
}

// Addr returns the host:port dial address for the target
func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// String returns the user@host form used in logs and reports
func (t Target) String() string {
	return fmt.Sprintf("%s@%s", t.User, t.Host)
}

// PipelineConfig is the YAML configuration for a pipeline
type PipelineConfig struct {
	TriggerBranch  string   `yaml:"trigger_branch"`
	CoreVersion    string   `yaml:"core_version"`
	Secret         string   `yaml:"secret"`
	WorkingDir     string   `yaml:"working_dir"`
	Invocation     string   `yaml:"invocation"`
	Targets        []Target `yaml:"targets"`
	ConnectTimeout int      `yaml:"connect_timeout"`
	CommandTimeout int      `yaml:"command_timeout"`
}

// Config is the root configuration structure
type Config struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

// Matches reports whether the given branch triggers this pipeline.
// Comparison is exact string equality, nothing else is consulted.
func (p *Pipeline) Matches(branch string) bool {
	return branch == p.TriggerBranch
}

// MatchesRef reports whether a git push ref triggers this pipeline
func (p *Pipeline) MatchesRef(ref string) bool {
	return ref == fmt.Sprintf("refs/heads/%s", p.TriggerBranch)
}

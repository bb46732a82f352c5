package config

import (
	"fmt"
	"os"
	"strings"

	"skillsync/internal/security"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInvocation     = "pipenv run python script/load_skill_data.py"
	DefaultSSHPort        = 22
	DefaultConnectTimeout = 30
)

// Load reads and validates the pipelines configuration from a YAML file
func Load(configPath string) (map[string]*Pipeline, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Empty YAML files unmarshal to a nil map
	if cfg.Pipelines == nil {
		cfg.Pipelines = make(map[string]PipelineConfig)
	}

	pipelines := make(map[string]*Pipeline)
	for name, pc := range cfg.Pipelines {
		errs := ValidatePipelineConfig(name, pc)
		if len(errs) > 0 {
			return nil, fmt.Errorf("invalid configuration for pipeline '%s':\n%s",
				name, strings.Join(errs, "\n"))
		}

		// Apply defaults
		invocation := pc.Invocation
		if invocation == "" {
			invocation = DefaultInvocation
		}
		parts, err := shellquote.Split(invocation)
		if err != nil {
			return nil, fmt.Errorf("pipeline '%s': failed to parse invocation: %w", name, err)
		}

		coreVersion := pc.CoreVersion
		if coreVersion == "" {
			// The core version passed to the loader matches the branch under build
			coreVersion = pc.TriggerBranch
		}

		connectTimeout := pc.ConnectTimeout
		if connectTimeout == 0 {
			connectTimeout = DefaultConnectTimeout
		}

		targets := make([]Target, len(pc.Targets))
		for i, tgt := range pc.Targets {
			if tgt.Port == 0 {
				tgt.Port = DefaultSSHPort
			}
			if tgt.Name == "" {
				tgt.Name = tgt.Host
			}
			targets[i] = tgt
		}

		pipelines[name] = &Pipeline{
			Name:           name,
			TriggerBranch:  pc.TriggerBranch,
			CoreVersion:    coreVersion,
			Secret:         pc.Secret,
			WorkingDir:     pc.WorkingDir,
			Invocation:     parts,
			Targets:        targets,
			ConnectTimeout: connectTimeout,
			CommandTimeout: pc.CommandTimeout,
		}
	}

	return pipelines, nil
}

// ValidatePipelineConfig validates a single pipeline configuration.
// Every value that ends up in a remote command line is checked here, before
// any session is opened.
func ValidatePipelineConfig(name string, pc PipelineConfig) []string {
	var errors []string

	if err := security.ValidatePipelineName(name); err != nil {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': %v", name, err))
	}

	if pc.TriggerBranch == "" {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': missing required 'trigger_branch' field", name))
	} else if err := security.ValidateBranchName(pc.TriggerBranch); err != nil {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': trigger_branch: %v", name, err))
	}

	if pc.CoreVersion != "" {
		if err := security.ValidateCoreVersion(pc.CoreVersion); err != nil {
			errors = append(errors, fmt.Sprintf("  - Pipeline '%s': core_version: %v", name, err))
		}
	}

	if pc.WorkingDir == "" {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': missing required 'working_dir' field", name))
	} else if err := security.ValidateWorkingDir(pc.WorkingDir); err != nil {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': working_dir: %v", name, err))
	}

	if pc.Invocation != "" {
		parts, err := shellquote.Split(pc.Invocation)
		if err != nil {
			errors = append(errors, fmt.Sprintf("  - Pipeline '%s': invocation: %v", name, err))
		} else if err := security.ValidateInvocation(parts); err != nil {
			errors = append(errors, fmt.Sprintf("  - Pipeline '%s': invocation: %v", name, err))
		}
	}

	if len(pc.Targets) == 0 {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': at least one target is required", name))
	}
	for i, tgt := range pc.Targets {
		if err := security.ValidateHost(tgt.Host); err != nil {
			errors = append(errors, fmt.Sprintf("  - Pipeline '%s': target %d: host: %v", name, i, err))
		}
		if err := security.ValidateUser(tgt.User); err != nil {
			errors = append(errors, fmt.Sprintf("  - Pipeline '%s': target %d: user: %v", name, i, err))
		}
		if tgt.Port < 0 || tgt.Port > 65535 {
			errors = append(errors, fmt.Sprintf("  - Pipeline '%s': target %d: port must be between 1-65535, got %d", name, i, tgt.Port))
		}
	}

	// Webhook secret is only needed in serve mode, but when present it must
	// be a real one
	if pc.Secret != "" {
		if err := security.ValidateSecret(pc.Secret); err != nil {
			errors = append(errors, fmt.Sprintf("  - Pipeline '%s': secret: %v", name, err))
		}
	}

	if pc.ConnectTimeout < 0 {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': connect_timeout must be a positive integer, got %d", name, pc.ConnectTimeout))
	}
	if pc.CommandTimeout < 0 {
		errors = append(errors, fmt.Sprintf("  - Pipeline '%s': command_timeout must be a positive integer, got %d", name, pc.CommandTimeout))
	}

	return errors
}

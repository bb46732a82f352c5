package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Safe patterns for values that end up inside remote command lines
	branchPattern   = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
	pipelinePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	versionPattern  = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	hostPattern     = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
	userPattern     = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
)

// AllowedInvocations is the set of executables permitted as the first word
// of a remote script invocation. The invoker composes the full remote
// command itself, so the configured invocation must start with one of these.
var AllowedInvocations = map[string]bool{
	"pipenv":  true,
	"python":  true,
	"python3": true,
	"sh":      true,
	"bash":    true,
}

// ValidateBranchName ensures a branch name is safe for use inside a remote
// command line. Prevents injection through branch names.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters")
	}
	return nil
}

// ValidatePipelineName ensures a pipeline name is safe for use in paths and URLs.
func ValidatePipelineName(name string) error {
	if name == "" {
		return fmt.Errorf("pipeline name cannot be empty")
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("pipeline name cannot start with '-' or '.'")
	}
	if !pipelinePattern.MatchString(name) {
		return fmt.Errorf("pipeline name contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)")
	}
	return nil
}

// ValidateCoreVersion ensures a core version string is safe to pass as the
// --core-version argument of the remote script.
func ValidateCoreVersion(version string) error {
	if version == "" {
		return fmt.Errorf("core version cannot be empty")
	}
	if strings.HasPrefix(version, "-") {
		return fmt.Errorf("core version cannot start with '-'")
	}
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("core version contains invalid characters")
	}
	return nil
}

// ValidateHost ensures a hostname or IP address contains no characters that
// could alter the SSH dial address or a logged command line.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if strings.HasPrefix(host, "-") {
		return fmt.Errorf("host cannot start with '-'")
	}
	if !hostPattern.MatchString(host) {
		return fmt.Errorf("host contains invalid characters")
	}
	return nil
}

// ValidateUser ensures a remote username is a plausible POSIX account name.
func ValidateUser(user string) error {
	if user == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if !userPattern.MatchString(user) {
		return fmt.Errorf("user contains invalid characters")
	}
	return nil
}

// ValidateInvocation checks a parsed script invocation before it is composed
// into a remote command. The executable must be allowlisted and no argument
// may carry shell metacharacters.
func ValidateInvocation(parts []string) error {
	if len(parts) == 0 {
		return fmt.Errorf("empty invocation")
	}
	if !AllowedInvocations[parts[0]] {
		return fmt.Errorf("invocation not allowed: %s", parts[0])
	}
	for i, arg := range parts[1:] {
		if ContainsShellMetachars(arg) {
			return fmt.Errorf("invocation argument %d contains shell metacharacters: %s", i+1, arg)
		}
	}
	return nil
}

// ValidateWorkingDir ensures a remote working directory is absolute and free
// of traversal elements and shell metacharacters.
func ValidateWorkingDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("working directory cannot be empty")
	}
	if !strings.HasPrefix(dir, "/") {
		return fmt.Errorf("working directory must be absolute: %s", dir)
	}
	if strings.Contains(dir, "..") {
		return fmt.Errorf("working directory contains traversal elements: %s", dir)
	}
	if ContainsShellMetachars(dir) {
		return fmt.Errorf("working directory contains shell metacharacters: %s", dir)
	}
	return nil
}

// ContainsShellMetachars checks if a string contains shell metacharacters.
// These characters can be used for command injection attacks.
func ContainsShellMetachars(s string) bool {
	dangerous := []string{
		";",  // Command separator
		"|",  // Pipe
		"&",  // Background/AND
		"$",  // Variable expansion
		"`",  // Command substitution
		"\n", // Newline (command separator)
		">",  // Redirect output
		"<",  // Redirect input
		"(",  // Subshell start
		")",  // Subshell end
		"{",  // Brace expansion start
		"}",  // Brace expansion end
		"*",  // Glob wildcard
		"?",  // Glob single char
		"\\", // Escape character
		"'",  // Single quote (can bypass some protections)
		"\"", // Double quote (can bypass some protections)
	}

	for _, char := range dangerous {
		if strings.Contains(s, char) {
			return true
		}
	}

	return false
}

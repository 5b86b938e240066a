// Package security statically validates candidate commands before execution.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/pkg/filesystem"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Validator implements the CommandValidator port. All checks run
// independently so the full error set is visible in one pass.
type Validator struct {
	patterns   []compiledPattern
	extensions map[string]bool
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DenyPattern
}

// DenyPattern describes a regex-based deny rule applied per argv token.
type DenyPattern struct {
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DenyPatterns      []DenyPattern `yaml:"deny_patterns"`
		AllowedExtensions []string      `yaml:"allowed_extensions"`
	} `yaml:"rules"`
}

// NewValidator loads validation rules from disk (or defaults when missing).
func NewValidator(path string) (*Validator, error) {
	rules, err := loadRules(path)
	if err != nil {
		return nil, err
	}

	var compiled []compiledPattern
	for _, pattern := range rules.Rules.DenyPatterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledPattern{re: re, rule: pattern})
	}

	extensions := make(map[string]bool, len(rules.Rules.AllowedExtensions))
	for _, ext := range rules.Rules.AllowedExtensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Validator{patterns: compiled, extensions: extensions}, nil
}

// Validate implements ports.CommandValidator. It never executes anything:
// errors empty means valid; warnings never affect validity.
func (v *Validator) Validate(argv []string) domain.ValidationResult {
	result := domain.ValidationResult{}

	if len(argv) == 0 {
		result.Errors = append(result.Errors, "empty command")
		return result
	}

	if argv[0] != domain.MediaToolName {
		result.Errors = append(result.Errors,
			fmt.Sprintf("command must invoke %s, got %q", domain.MediaToolName, argv[0]))
	}

	if len(argv) < domain.MinCommandTokens {
		result.Errors = append(result.Errors,
			fmt.Sprintf("command too short: %d tokens, need at least %d", len(argv), domain.MinCommandTokens))
	}

	inputs := DeclaredInputs(argv)
	if len(inputs) == 0 {
		result.Errors = append(result.Errors, "no input source declared (-i)")
	}

	for _, token := range argv {
		for _, pattern := range v.patterns {
			if pattern.re.MatchString(token) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("denied token %q: %s", token, pattern.rule.Message))
			}
		}
	}

	for _, input := range inputs {
		if hasTraversal(input) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("input path %q contains parent-directory traversal", input))
		}
		if strings.HasPrefix(input, "~") {
			result.Errors = append(result.Errors,
				fmt.Sprintf("input path %q uses home expansion", input))
		}
	}

	if len(argv) >= domain.MinCommandTokens {
		output := argv[len(argv)-1]
		switch {
		case strings.HasPrefix(output, "-"):
			result.Errors = append(result.Errors,
				fmt.Sprintf("final token %q looks like a flag, not an output path", output))
		case hasTraversal(output):
			result.Errors = append(result.Errors,
				fmt.Sprintf("output path %q contains parent-directory traversal", output))
		default:
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(output), "."))
			if ext == "" || !v.extensions[ext] {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("output extension %q is not on the allow-list", ext))
			}
		}
	}

	result.Sanitized = sanitize(argv)
	result.Valid = len(result.Errors) == 0
	return result
}

// DeclaredInputs returns every path following an -i flag.
func DeclaredInputs(argv []string) []string {
	var inputs []string
	for i, token := range argv {
		if token == "-i" && i+1 < len(argv) {
			inputs = append(inputs, argv[i+1])
		}
	}
	return inputs
}

// sanitize injects the non-interactive overwrite flag immediately before the
// output path when neither an overwrite nor a no-overwrite flag is present.
// Without it the tool blocks on an interactive prompt and hangs the pipeline.
func sanitize(argv []string) []string {
	for _, token := range argv {
		if token == domain.OverwriteFlag || token == domain.NoOverwriteFlag {
			return append([]string(nil), argv...)
		}
	}
	if len(argv) < 2 {
		return append([]string(nil), argv...)
	}
	sanitized := make([]string, 0, len(argv)+1)
	sanitized = append(sanitized, argv[:len(argv)-1]...)
	sanitized = append(sanitized, domain.OverwriteFlag, argv[len(argv)-1])
	return sanitized
}

func hasTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

func loadRules(path string) (RulesFile, error) {
	var rules RulesFile
	path = expandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		// fall back to defaults
		rules.Rules.DenyPatterns = defaultDenyPatterns()
		rules.Rules.AllowedExtensions = defaultExtensions()
		return rules, nil
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, err
	}
	if len(rules.Rules.DenyPatterns) == 0 {
		rules.Rules.DenyPatterns = defaultDenyPatterns()
	}
	if len(rules.Rules.AllowedExtensions) == 0 {
		rules.Rules.AllowedExtensions = defaultExtensions()
	}
	return rules, nil
}

func expandPath(path string) string {
	if path == "" {
		return filepath.Join(filesystem.UserHomeDir(), ".ffpilot", "rules.yaml")
	}
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Join(filesystem.UserHomeDir(), path)
}

func defaultDenyPatterns() []DenyPattern {
	return []DenyPattern{
		{Pattern: `^-protocol_whitelist$`, Message: "protocol whitelist override escapes the sandbox"},
		{Pattern: `^-allowed_extensions$`, Message: "extension whitelist override escapes the sandbox"},
		{Pattern: `^pipe:`, Message: "pipe output bypasses output verification"},
		{Pattern: `^/dev/`, Message: "device-path output"},
		{Pattern: `^rawvideo$`, Message: "raw format emitter"},
		{Pattern: `^-filter_script$`, Message: "external filter script injection"},
		{Pattern: `^-passlogfile$`, Message: "arbitrary log file placement"},
	}
}

func defaultExtensions() []string {
	return []string{
		"mp4", "mkv", "mov", "webm", "avi",
		"mp3", "aac", "wav", "flac", "opus", "m4a", "ogg",
		"gif", "png", "jpg", "jpeg", "webp",
		"srt", "vtt", "ass",
	}
}

var _ ports.CommandValidator = (*Validator)(nil)

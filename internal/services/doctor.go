package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Doctor runs environment diagnostics.
type Doctor struct {
	ConfigProvider ports.ConfigProvider
	Validator      ports.CommandValidator
	Bridge         ports.Bridge
	Registry       ports.Registry
}

// Run executes checks and returns a report.
func (s *Doctor) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("format version %s", cfg.ConfigFormatVersion)))

	checks = append(checks, toolCheck(domain.MediaToolName))
	checks = append(checks, toolCheck(domain.ProbeToolName))

	if s.Validator != nil {
		probe := s.Validator.Validate([]string{domain.MediaToolName, "-i", "in.mp4", "out.mp4"})
		if probe.Valid {
			checks = append(checks, ok("Validator", "rules loaded"))
		} else {
			checks = append(checks, fail("Validator", strings.Join(probe.Errors, "; ")))
		}
	} else if !cfg.Validator.Disabled {
		checks = append(checks, warn("Validator", "enabled but not initialized"))
	}

	checks = append(checks, rulesFileCheck(cfg.Validator.RulesFile))
	checks = append(checks, apiCheck(cfg.Models))
	checks = append(checks, budgetCheck(cfg.Budget))

	if cfg.Bridge.Command != "" {
		if s.Bridge == nil {
			checks = append(checks, warn("Bridge", "configured but not initialized"))
		} else if err := s.Bridge.Health(ctx); err != nil {
			checks = append(checks, warn("Bridge", err.Error()))
		} else {
			checks = append(checks, ok("Bridge", cfg.Bridge.Command))
		}
	}

	if cfg.Registry.Endpoint != "" {
		if s.Registry == nil {
			checks = append(checks, warn("Registry", "configured but not initialized"))
		} else if _, err := s.Registry.List(ctx); err != nil {
			checks = append(checks, warn("Registry", fmt.Sprintf("unreachable: %v", err)))
		} else {
			checks = append(checks, ok("Registry", cfg.Registry.Endpoint))
		}
	}

	return domain.HealthReport{Checks: checks}, nil
}

func toolCheck(name string) domain.HealthCheck {
	path, err := exec.LookPath(name)
	if err != nil {
		return fail(name, "not found in PATH")
	}
	return ok(name, path)
}

func rulesFileCheck(path string) domain.HealthCheck {
	if path == "" {
		return warn("Rules file", "validator.rules_file not configured, using built-in defaults")
	}
	if _, err := os.Stat(path); err != nil {
		return warn("Rules file", fmt.Sprintf("missing at %s, using built-in defaults", path))
	}
	return ok("Rules file", path)
}

func apiCheck(models []domain.ModelDefinition) domain.HealthCheck {
	for _, model := range models {
		if model.AuthEnvVar == "" {
			continue
		}
		if os.Getenv(model.AuthEnvVar) == "" {
			return warn("API keys", fmt.Sprintf("%s missing for model %s", model.AuthEnvVar, model.Name))
		}
	}
	return ok("API keys", "detected for configured models")
}

func budgetCheck(budget domain.BudgetSettings) domain.HealthCheck {
	if budget.DailyLimitUSD <= 0 {
		return warn("Budget", "daily limit not set, AI generation disabled")
	}
	return ok("Budget", fmt.Sprintf("daily limit $%.2f", budget.DailyLimitUSD))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}

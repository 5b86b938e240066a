// Package app wires application services to infrastructure adapters.
package app

import (
	"context"
	"time"

	"github.com/doeshing/ffpilot/internal/infrastructure/ai"
	"github.com/doeshing/ffpilot/internal/infrastructure/bridge"
	"github.com/doeshing/ffpilot/internal/infrastructure/budget"
	"github.com/doeshing/ffpilot/internal/infrastructure/config"
	"github.com/doeshing/ffpilot/internal/infrastructure/executor"
	"github.com/doeshing/ffpilot/internal/infrastructure/ffprobe"
	"github.com/doeshing/ffpilot/internal/infrastructure/history"
	"github.com/doeshing/ffpilot/internal/infrastructure/registry"
	"github.com/doeshing/ffpilot/internal/infrastructure/security"
	"github.com/doeshing/ffpilot/internal/pkg/logger"
	"github.com/doeshing/ffpilot/internal/ports"
	"github.com/doeshing/ffpilot/internal/services"
)

// Container holds the fully wired dependency graph.
type Container struct {
	Pipeline       *services.Pipeline
	Doctor         *services.Doctor
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Budget         ports.BudgetTracker
	Prober         ports.MediaProber
	Bridge         ports.Bridge
	Registry       ports.Registry
	Ledger         ports.RunLedger
	Logger         ports.Logger
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.NewStd(verbose || cfg.Preferences.Verbose)

	validator, err := security.NewValidator(cfg.Validator.RulesFile)
	if err != nil {
		validator, err = security.NewValidator("")
		if err != nil {
			return nil, err
		}
		log.Warn("rules file unusable, using built-in defaults", map[string]interface{}{
			"path": cfg.Validator.RulesFile,
		})
	}

	tracker := budget.NewTracker(cfg.Budget.DailyLimitUSD)
	runner := executor.NewProtected(cfg.Executor, log)
	prober := ffprobe.NewProber()
	factory := ai.NewFactory(time.Duration(cfg.Preferences.GeneratorTimeout) * time.Second)

	var reg ports.Registry
	if cfg.Registry.Endpoint != "" {
		reg = registry.NewClient(cfg.Registry)
	}

	var eng ports.Bridge
	if cfg.Bridge.Command != "" {
		eng = bridge.NewEngine(cfg.Bridge, log)
	}

	var ledger ports.RunLedger
	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore()
		if err != nil {
			log.Warn("run ledger unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			if err := store.Prune(cfg.History.RetentionDays); err != nil {
				log.Warn("ledger prune failed", map[string]interface{}{"error": err.Error()})
			}
			ledger = store
		}
	}

	pipeline := &services.Pipeline{
		ConfigProvider: cfgLoader,
		Factory:        factory,
		Validator:      validator,
		Budget:         tracker,
		Executor:       runner,
		Prober:         prober,
		Bridge:         eng,
		Registry:       reg,
		Ledger:         ledger,
		Logger:         log,
	}

	doctorService := &services.Doctor{
		ConfigProvider: cfgLoader,
		Validator:      validator,
		Bridge:         eng,
		Registry:       reg,
	}

	return &Container{
		Pipeline:       pipeline,
		Doctor:         doctorService,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Budget:         tracker,
		Prober:         prober,
		Bridge:         eng,
		Registry:       reg,
		Ledger:         ledger,
		Logger:         log,
	}, nil
}

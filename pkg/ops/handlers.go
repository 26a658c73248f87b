package ops

import (
	"context"
	"fmt"

	"github.com/brightsignal/opskit/pkg/config"
	"github.com/brightsignal/opskit/pkg/toolkit"
)

// ProfileSource resolves a scenario profile by name.
type ProfileSource interface {
	Profile(name string) (*config.ScenarioProfile, error)
}

// StaticProfiles is a ProfileSource over a preloaded map, the serve-mode
// result of config.LoadAllScenarioProfiles.
type StaticProfiles map[string]*config.ScenarioProfile

func (p StaticProfiles) Profile(name string) (*config.ScenarioProfile, error) {
	profile, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario profile %q", name)
	}
	return profile, nil
}

// SoftResetHandler adapts TenantResetter.SoftReset to the toolkit.
func SoftResetHandler(r TenantResetter) toolkit.Handler {
	return toolkit.HandlerFunc(func(ctx context.Context, req *toolkit.ExecutionRequest) (any, error) {
		return r.SoftReset(ctx, req.TenantID, req.DryRun)
	})
}

// HardResetHandler adapts TenantResetter.HardReset to the toolkit. The
// destructive confirmation has already been enforced by the executor.
func HardResetHandler(r TenantResetter) toolkit.Handler {
	return toolkit.HandlerFunc(func(ctx context.Context, req *toolkit.ExecutionRequest) (any, error) {
		return r.HardReset(ctx, req.TenantID, req.DryRun)
	})
}

// SeedScenarioHandler adapts ScenarioSeeder. The profile name arrives as
// the "profile" param; a request without one is a validation failure, not a
// handler crash.
func SeedScenarioHandler(s ScenarioSeeder, profiles ProfileSource) toolkit.Handler {
	return toolkit.HandlerFunc(func(ctx context.Context, req *toolkit.ExecutionRequest) (any, error) {
		name, _ := req.Param("profile")
		profileName, ok := name.(string)
		if !ok || profileName == "" {
			return nil, toolkit.Validation("params.profile is required")
		}
		profile, err := profiles.Profile(profileName)
		if err != nil {
			return nil, toolkit.Validation(err.Error())
		}
		return s.Seed(ctx, req.TenantID, profile, req.DryRun)
	})
}

// RunRulesHandler adapts RuleEvaluator.
func RunRulesHandler(e RuleEvaluator) toolkit.Handler {
	return toolkit.HandlerFunc(func(ctx context.Context, req *toolkit.ExecutionRequest) (any, error) {
		return e.Run(ctx, req.TenantID, req.DryRun)
	})
}

// StatusHandler reports the slot gate occupancy as a READ command so the
// CLI can query it without the HTTP surface.
func StatusHandler(gate *toolkit.SlotGate) toolkit.Handler {
	return toolkit.HandlerFunc(func(ctx context.Context, req *toolkit.ExecutionRequest) (any, error) {
		return map[string]any{
			"version":  toolkit.Version,
			"inFlight": gate.InFlight(),
			"limit":    gate.Limit(),
		}, nil
	})
}

// Deps bundles everything Register wires into the command registry.
type Deps struct {
	Resetter TenantResetter
	Seeder   ScenarioSeeder
	Rules    RuleEvaluator
	Profiles ProfileSource
	Gate     *toolkit.SlotGate
}

// Register populates the registry with the standard toolkit commands.
func Register(reg *toolkit.Registry, deps Deps) error {
	type entry struct {
		spec    toolkit.CommandSpec
		handler toolkit.Handler
	}
	entries := []entry{
		{toolkit.CommandSpec{Name: "status", Classification: toolkit.ClassificationRead}, StatusHandler(deps.Gate)},
		{toolkit.CommandSpec{Name: "reset-tenant", Classification: toolkit.ClassificationWrite}, SoftResetHandler(deps.Resetter)},
		{toolkit.CommandSpec{Name: "reset-tenant-hard", Classification: toolkit.ClassificationDestructive}, HardResetHandler(deps.Resetter)},
		{toolkit.CommandSpec{Name: "seed-alert-scenario", Classification: toolkit.ClassificationWrite}, SeedScenarioHandler(deps.Seeder, deps.Profiles)},
		// WRITE, not READ: a real run records firings in alert_state.
		{toolkit.CommandSpec{Name: "run-alert-rules", Classification: toolkit.ClassificationWrite}, RunRulesHandler(deps.Rules)},
	}
	for _, e := range entries {
		if err := reg.Register(e.spec, e.handler); err != nil {
			return err
		}
	}
	return nil
}

// Package module wires the discovery service and exposes its ports
package module

import (
	"issueradar/internal/adapters/forge/github"
	"issueradar/internal/modkit"
	perr "issueradar/internal/platform/errors"
	phttp "issueradar/internal/platform/net/http"
	"issueradar/internal/services/discovery/repo"
	"issueradar/internal/services/discovery/service"
)

// Module defines the discovery module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the discovery module with its ports
func New(deps modkit.Deps, overrides Options) (*Module, error) {
	// Load defaults from config then apply overrides from CLI (if provided)
	opts := FromConfig(deps.Cfg)

	if overrides.Token != "" {
		opts.Token = overrides.Token
	}
	if overrides.MaxConcurrent != 0 {
		opts.MaxConcurrent = overrides.MaxConcurrent
	}
	if overrides.RequestTimeout != 0 {
		opts.RequestTimeout = overrides.RequestTimeout
	}
	if overrides.BatchSize != 0 {
		opts.BatchSize = overrides.BatchSize
	}
	if overrides.StrategiesJSON != "" {
		opts.StrategiesJSON = overrides.StrategiesJSON
	}

	if opts.Token == "" {
		return nil, perr.InvalidArgf("discovery needs FORGE_TOKEN or API_TOKEN")
	}
	if deps.RDB == nil {
		return nil, perr.InvalidArgf("discovery needs a redis handle for the durable log")
	}

	strategies, err := loadStrategies(opts.StrategiesJSON)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(github.Options{
		Endpoint:      opts.Endpoint,
		Token:         opts.Token,
		Timeout:       opts.RequestTimeout,
		MaxRetries:    opts.MaxRetries,
		MaxConcurrent: int64(opts.MaxConcurrent),
	})

	dlog := repo.NewRedis(deps.RDB)
	seen := repo.NewSeenSet(deps.RDB, opts.SeenKey)

	svc, err := service.New(client, dlog, seen, service.Config{
		Strategies:    strategies,
		StreamKey:     opts.StreamKey,
		BatchSize:     opts.BatchSize,
		MaxLogLen:     opts.MaxLogLen,
		SweepInterval: opts.SweepInterval,
		SeenRetention: opts.SeenRetention,
		StatsEvery:    opts.StatsEvery,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	sup := service.NewSupervisor(svc, opts.StatsEvery, client.Close)

	m := &Module{deps: deps}
	m.ports = Ports{
		Runner:     sup,
		Scheduler:  svc.Sched,
		Publisher:  svc.Pub,
		Checker:    client,
		Pipeline:   svc,
		Supervisor: sup,
		Client:     client,
	}
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return "discovery" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Prefix returns the module config prefix
func (m *Module) Prefix() string { return "DISCOVERY_" }

// MountRoutes returns no HTTP routes for discovery (the ops module owns the surface)
func (m *Module) MountRoutes(_ phttp.Router) {}

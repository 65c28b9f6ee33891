// Package module wires the staleness service onto the shared scheduler
package module

import (
	"context"
	"time"

	"issueradar/internal/modkit"
	perr "issueradar/internal/platform/errors"
	phttp "issueradar/internal/platform/net/http"
	"issueradar/internal/services/staleness/domain"
	"issueradar/internal/services/staleness/service"

	ddomain "issueradar/internal/services/discovery/domain"
	dmodule "issueradar/internal/services/discovery/module"
)

// Options controls staleness behavior. Values may also be read from env
type Options struct {
	Interval  time.Duration
	BatchSize int
}

// FromConfig reads options using STALENESS_ prefix
func FromConfig(deps modkit.Deps) Options {
	st := deps.Cfg.Prefix("STALENESS_")
	return Options{
		Interval:  st.MayDuration("INTERVAL", 6*time.Hour),
		BatchSize: st.MayInt("BATCH", 500),
	}
}

// Ports defines staleness module ports exposed via the registry
type Ports struct {
	Checker domain.CheckerPort
	Tracker *service.Svc
}

// Module defines the staleness module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the staleness module and hangs its pass off the discovery
// scheduler. Requires the discovery module's ports and a Postgres handle
func New(deps modkit.Deps, disc dmodule.Ports, overrides Options) (*Module, error) {
	opts := FromConfig(deps)
	if overrides.Interval != 0 {
		opts.Interval = overrides.Interval
	}
	if overrides.BatchSize != 0 {
		opts.BatchSize = overrides.BatchSize
	}

	if deps.PG == nil {
		return nil, perr.InvalidArgf("staleness needs a postgres handle")
	}
	var checker ddomain.StatusChecker = disc.Checker
	if checker == nil || disc.Publisher == nil || disc.Pipeline == nil {
		return nil, perr.InvalidArgf("staleness needs the discovery module wired first")
	}

	svc := service.New(deps.PG, checker, disc.Publisher, service.Config{
		Interval:  opts.Interval,
		BatchSize: opts.BatchSize,
	})

	err := disc.Pipeline.RegisterJob("staleness", svc.Interval(), func(ctx context.Context) (int, error) {
		res, err := svc.Check(ctx)
		return res.Closed, err
	})
	if err != nil {
		return nil, err
	}

	// every record that reaches the log enters the verification inventory
	log := deps.Log
	disc.Pipeline.Pub.SetOnPublished(func(ctx context.Context, iss ddomain.Issue) {
		ref := domain.IssueRef{URL: iss.URL, Owner: iss.RepoOwner, Repo: iss.RepoName, Number: iss.Number}
		if err := svc.Track(ctx, ref); err != nil {
			log.Warn().Err(err).Str("url", iss.URL).Msg("issue tracking failed")
		}
	})

	m := &Module{deps: deps}
	m.ports = Ports{Checker: svc, Tracker: svc}
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return "staleness" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Prefix returns the module config prefix
func (m *Module) Prefix() string { return "STALENESS_" }

// MountRoutes returns no HTTP routes for staleness
func (m *Module) MountRoutes(_ phttp.Router) {}

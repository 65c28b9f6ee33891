// Package module exposes the operational HTTP surface: health, stats
// and manual strategy triggers
package module

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"issueradar/internal/core/version"
	"issueradar/internal/modkit"
	perr "issueradar/internal/platform/errors"
	phttp "issueradar/internal/platform/net/http"
	mw "issueradar/internal/platform/net/middleware"

	dmodule "issueradar/internal/services/discovery/module"
)

// Module defines the ops module
type Module struct {
	deps modkit.Deps
	disc dmodule.Ports
}

// New constructs the ops module over the discovery ports
func New(deps modkit.Deps, disc dmodule.Ports) *Module {
	return &Module{deps: deps, disc: disc}
}

// Name returns the module name
func (m *Module) Name() string { return "ops" }

// Ports returns no ports; ops is a pure HTTP surface
func (m *Module) Ports() any { return struct{}{} }

// Prefix returns the module config prefix
func (m *Module) Prefix() string { return "OPS_" }

// MountRoutes mounts the ops endpoints
func (m *Module) MountRoutes(r phttp.Router) {
	r.Use(mw.Defaults()...)
	r.Use(mw.CORS(mw.CORSOptions{AllowedOrigins: []string{"*"}}))
	r.Use(mw.AccessLogZerolog(mw.AccessLogOptions{Slow: 2 * time.Second}))

	phttp.GetJSON(r, "/healthz", m.healthz)
	phttp.GetJSON(r, "/stats", m.stats)
	phttp.PostJSON(r, "/log/read", m.logRead)
	r.Post("/trigger/{strategy}", phttp.JSONHandlerNoBody(m.trigger))
}

func (m *Module) healthz(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if m.deps.RDB != nil {
		if err := m.deps.RDB.Ping(ctx).Err(); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "durable log unreachable")
		}
	}
	return map[string]any{
		"state": m.disc.Supervisor.State(),
	}, nil
}

func (m *Module) stats(_ *http.Request) (any, error) {
	return map[string]any{
		"build":      version.Info(),
		"state":      m.disc.Supervisor.State(),
		"strategies": m.disc.Scheduler.Stats(),
		"publisher":  m.disc.Pipeline.Pub.Stats(),
		"local_seen": m.disc.Pipeline.Dedup.LocalSize(),
		"rate_limit": m.disc.Client.Limiter().Snapshot(),
	}, nil
}

// logReadRequest bounds an operator's peek at the discovery stream
type logReadRequest struct {
	// FromLSN is exclusive; empty reads from the start of the retained window
	FromLSN string `json:"from_lsn"`
	Count   int64  `json:"count" validate:"required,min=1,max=1000"`
}

func (m *Module) logRead(r *http.Request, req logReadRequest) (any, error) {
	entries, err := m.disc.Pipeline.Log.Read(r.Context(), m.disc.Pipeline.StreamKey(), req.FromLSN, req.Count)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"stream":  m.disc.Pipeline.StreamKey(),
		"count":   len(entries),
		"entries": entries,
	}, nil
}

func (m *Module) trigger(r *http.Request) (any, error) {
	name := chi.URLParam(r, "strategy")
	if name == "" {
		return nil, perr.InvalidArgf("strategy name required")
	}
	if !m.disc.Supervisor.Trigger(name) {
		return nil, perr.NotFoundf("strategy %q unknown, already pending, or pipeline not running", name)
	}
	return map[string]string{"triggered": name}, nil
}

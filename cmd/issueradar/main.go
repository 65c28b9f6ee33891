// Command issueradar runs the continuous issue discovery pipeline:
// scheduled forge searches, dedup, batch publishing to the durable log,
// periodic staleness verification, and an ops HTTP surface
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"issueradar/internal/core/version"
	"issueradar/internal/modkit"
	"issueradar/internal/modkit/module"
	"issueradar/internal/modkit/repokit"
	"issueradar/internal/platform/config"
	"issueradar/internal/platform/logger"
	phttp "issueradar/internal/platform/net/http"
	"issueradar/internal/platform/store"

	discmod "issueradar/internal/services/discovery/module"
	opsmod "issueradar/internal/services/ops/module"
	stalemod "issueradar/internal/services/staleness/module"
)

func main() {
	root := config.New()
	l := logger.Get()

	var (
		fToken      = flag.String("token", "", "forge API token (overrides FORGE_TOKEN / API_TOKEN)")
		fBatch      = flag.Int("batch", 0, "publish batch size (overrides DISCOVERY_BATCH_SIZE)")
		fConc       = flag.Int("concurrency", 0, "max concurrent forge requests")
		fStrategies = flag.String("strategies", "", "JSON strategy table (overrides DISCOVERY_STRATEGIES)")
		fNoOps      = flag.Bool("no-ops", false, "disable the ops HTTP surface")
	)
	flag.Parse()

	bi := version.Info()
	l.Info().
		Str("service", bi.Service).
		Str("version", bi.Version).
		Str("commit", bi.Commit).
		Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgURL := root.MayString("STALENESS_PG_DBURL", "")
	st, err := store.Open(ctx, store.Config{
		AppName: "issueradar",
		PG: store.PGConfig{
			Enabled:  pgURL != "",
			URL:      pgURL,
			MaxConns: int32(root.MayInt("STALENESS_PG_MAX_CONNS", 4)),
		},
		Redis: store.RedisConfig{
			Enabled: true,
			URL:     root.MayString("LOG_URL", "redis://localhost:6379/0"),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	// fail fast when a configured backend does not answer
	repokit.MustGuard(ctx, st)

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
		RDB: st.RDB,
	}

	disc, err := discmod.New(deps, discmod.Options{
		Token:          *fToken,
		BatchSize:      *fBatch,
		MaxConcurrent:  *fConc,
		StrategiesJSON: *fStrategies,
	})
	if err != nil {
		l.Error().Err(err).Msg("discovery wiring failed")
		os.Exit(1)
	}
	module.Register(disc.Name(), disc.Ports())
	ports := module.MustPortsOf[discmod.Ports](disc)

	// Staleness rides the shared scheduler; it needs postgres for the inventory
	if st.PG != nil {
		stale, err := stalemod.New(deps, ports, stalemod.Options{})
		if err != nil {
			l.Error().Err(err).Msg("staleness wiring failed")
			os.Exit(1)
		}
		module.Register(stale.Name(), stale.Ports())
	} else {
		l.Info().Msg("staleness disabled, no postgres configured")
	}

	if !*fNoOps {
		ops := opsmod.New(deps, ports)
		srv := phttp.NewServer(root)
		ops.MountRoutes(srv.Router())
		phttp.MountProfiler(srv.Router(), "/debug", root.MayBool("OPS_PPROF", false))
		go func() {
			if err := srv.Run(ctx); err != nil {
				l.Error().Err(err).Msg("ops server failed")
			}
		}()
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		}()
	}

	if err := ports.Runner.Run(ctx); err != nil {
		l.Error().Err(err).Msg("pipeline failed")
		os.Exit(1)
	}
}

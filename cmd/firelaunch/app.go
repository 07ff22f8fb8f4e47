package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/pkg/auth"
	"github.com/fire-square/FireLaunch/pkg/config"
	"github.com/fire-square/FireLaunch/pkg/fetch"
	"github.com/fire-square/FireLaunch/pkg/launch"
	"github.com/fire-square/FireLaunch/pkg/metrics"
	"github.com/fire-square/FireLaunch/pkg/provision"
	"github.com/fire-square/FireLaunch/pkg/resolver"
	"github.com/fire-square/FireLaunch/pkg/store"
)

// DefaultOfflineUsername is used when no account is configured.
const DefaultOfflineUsername = "Player"

// app holds everything wired from one configuration.
type app struct {
	cfg    *config.Config
	logger hclog.Logger

	store     *store.Store
	creds     *auth.Adapter
	resolver  *resolver.Resolver
	assembler *launch.Assembler
	prov      *provision.Provisioner

	metricsSrv *http.Server
}

type appOptions struct {
	refresh  bool
	username string
}

func newApp(cfg *config.Config, logger hclog.Logger, opts appOptions) (*app, error) {
	st, err := store.Open(cfg.Root, store.Options{
		TrustRecords: cfg.Store.TrustRecords,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	var provider auth.Provider
	switch {
	case opts.username != "":
		provider = auth.Offline{Username: opts.username}
	case cfg.Account.CredentialsFile != "":
		provider = auth.NewFileProvider(cfg.Account.CredentialsFile)
	case cfg.Account.OfflineUsername != "":
		provider = auth.Offline{Username: cfg.Account.OfflineUsername}
	default:
		provider = auth.Offline{Username: DefaultOfflineUsername}
	}
	creds := auth.NewAdapter(provider, auth.AdapterOptions{Logger: logger})

	a := &app{cfg: cfg, logger: logger, store: st, creds: creds}

	var m metrics.FetchMetrics = metrics.Noop{}
	if cfg.MetricsAddr != "" {
		m = metrics.NewProm(nil)
		a.serveMetrics(cfg.MetricsAddr)
	}

	client := fetch.NewClient(fetch.ClientOptions{
		Credentials: creds,
		AuthHosts:   cfg.AuthHosts,
		Retry:       cfg.RetryPolicy(),
		UserAgent:   cfg.UserAgent + "/" + version,
		Logger:      logger,
		Metrics:     m,
	})
	orch := fetch.New(st, client, fetch.Options{
		Workers: cfg.Workers,
		Logger:  logger,
		Metrics: m,
	})
	a.resolver = resolver.New(st, client, orch, resolver.Options{
		ManifestURL:  cfg.ManifestURL(),
		Gateway:      cfg.Gateway,
		LibrariesURL: cfg.LibrariesURL,
		AssetsURL:    cfg.AssetsURL,
		MaxDepth:     cfg.MaxDepth,
		Refresh:      opts.refresh,
		Logger:       logger,
	})
	a.assembler = launch.NewAssembler(st, creds, launch.AssemblerOptions{Logger: logger})
	a.prov = provision.New(st, a.resolver, orch, a.assembler, provision.Options{Logger: logger})
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("📊 Serving metrics", "addr", addr)
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("❌ Metrics server failed", "error", err)
		}
	}()
}

func (a *app) close() {
	if a.metricsSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.metricsSrv.Shutdown(ctx); err != nil {
		a.logger.Debug("⚠️ Metrics server shutdown", "error", err)
	}
}

func (a *app) launchOptions(java, gameDir string, width, height int) launch.Options {
	opts := launch.Options{
		GameDir:         a.cfg.Launch.GameDir,
		JavaPath:        a.cfg.Launch.JavaPath,
		JVMArgs:         a.cfg.Launch.JVMArgs,
		Width:           a.cfg.Launch.Width,
		Height:          a.cfg.Launch.Height,
		LauncherName:    launch.DefaultLauncherName,
		LauncherVersion: version,
	}
	if java != "" {
		opts.JavaPath = java
	}
	if gameDir != "" {
		opts.GameDir = gameDir
	}
	if width > 0 && height > 0 {
		opts.Width, opts.Height = width, height
	}
	return opts
}

func describe(res *resolver.Resolved) string {
	return fmt.Sprintf("%s (chain %v): %d libraries, %d assets, main class %s",
		res.Version.ID, res.Chain, len(res.Libraries), len(res.Assets), res.Version.MainClass)
}

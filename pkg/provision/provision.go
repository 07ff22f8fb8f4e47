// Package provision runs the install and launch-preparation workflows
// against one data root.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/pkg/launch"
	"github.com/fire-square/FireLaunch/pkg/logging"
	"github.com/fire-square/FireLaunch/pkg/progress"
	"github.com/fire-square/FireLaunch/pkg/resolver"
	"github.com/fire-square/FireLaunch/pkg/store"
)

// Resolver turns a version id into artifacts.
type Resolver interface {
	Resolve(ctx context.Context, versionID string) (*resolver.Resolved, error)
}

// Assembler builds launch specs.
type Assembler interface {
	Assemble(ctx context.Context, res *resolver.Resolved, opts launch.Options) (*launch.Spec, error)
}

// Options configures a Provisioner.
type Options struct {
	Logger hclog.Logger
}

// Provisioner ties the resolver, the fetch orchestrator and the launch
// assembler together.
type Provisioner struct {
	store     *store.Store
	resolver  Resolver
	fetcher   resolver.ArtifactFetcher
	assembler Assembler
	logger    hclog.Logger
}

// New returns a Provisioner. assembler may be nil when only Install is used.
func New(st *store.Store, r Resolver, f resolver.ArtifactFetcher, assembler Assembler, opts Options) *Provisioner {
	return &Provisioner{
		store:     st,
		resolver:  r,
		fetcher:   f,
		assembler: assembler,
		logger:    logging.OrNull(opts.Logger).Named("provision"),
	}
}

// Install resolves versionID and brings every artifact it needs into the
// store. It holds the data root's cross-process lock for the whole run.
func (p *Provisioner) Install(ctx context.Context, versionID string, sink progress.Sink) (*resolver.Resolved, error) {
	if sink == nil {
		sink = progress.Discard
	}

	if err := p.store.WaitLock(ctx); err != nil {
		terminal(ctx, sink, err)
		return nil, err
	}
	defer p.store.Unlock()

	if _, err := p.store.SweepPartials(); err != nil {
		p.logger.Warn("⚠️ Sweeping partial downloads failed", "error", err)
	}

	res, err := p.resolver.Resolve(ctx, versionID)
	if err != nil {
		p.logger.Error("❌ Resolution failed", "version", versionID, "error", err)
		terminal(ctx, sink, err)
		return nil, err
	}

	refs := res.Artifacts()
	p.logger.Info("📥 Installing version", "version", versionID, "artifacts", len(refs))
	if err := p.fetcher.FetchAll(ctx, refs, sink); err != nil {
		return nil, err
	}
	p.logger.Info("✅ Version installed", "version", versionID)
	return res, nil
}

// Prepare installs versionID and assembles its launch. Assembly only starts
// after every artifact has been fetched and verified.
func (p *Provisioner) Prepare(ctx context.Context, versionID string, sink progress.Sink, opts launch.Options) (*launch.Spec, error) {
	if p.assembler == nil {
		return nil, errors.New("provisioner has no launch assembler")
	}
	res, err := p.Install(ctx, versionID, sink)
	if err != nil {
		return nil, err
	}
	return p.assembler.Assemble(ctx, res, opts)
}

// Report lists artifacts of a version that are not Valid in the store.
type Report struct {
	Version string
	Total   int
	Missing []store.Ref
	Corrupt []store.Ref
}

// OK reports whether every artifact verified.
func (r *Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Corrupt) == 0
}

// Verify resolves versionID and checks each artifact without downloading
// anything but metadata.
func (p *Provisioner) Verify(ctx context.Context, versionID string) (*Report, error) {
	res, err := p.resolver.Resolve(ctx, versionID)
	if err != nil {
		return nil, err
	}

	refs := res.Artifacts()
	report := &Report{Version: versionID, Total: len(refs)}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch p.store.Verify(ref) {
		case store.Missing:
			report.Missing = append(report.Missing, ref)
		case store.Corrupt:
			report.Corrupt = append(report.Corrupt, ref)
		}
	}
	p.logger.Info("🔍 Verified version",
		"version", versionID,
		"artifacts", report.Total,
		"missing", len(report.Missing),
		"corrupt", len(report.Corrupt))
	return report, nil
}

func terminal(ctx context.Context, sink progress.Sink, err error) {
	if ctx.Err() != nil {
		sink.Report(progress.Event{Kind: progress.Cancelled, Err: err})
		return
	}
	sink.Report(progress.Event{Kind: progress.Failed, Err: fmt.Errorf("provision: %w", err)})
}

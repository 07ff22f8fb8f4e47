// Package fetch downloads artifacts into the store with bounded
// concurrency, retries and progress reporting.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/fire-square/FireLaunch/pkg/logging"
	"github.com/fire-square/FireLaunch/pkg/metrics"
	"github.com/fire-square/FireLaunch/pkg/progress"
	"github.com/fire-square/FireLaunch/pkg/store"
)

// Downloader fetches a URL and hands the body to consume.
type Downloader interface {
	Fetch(ctx context.Context, url string, consume func(io.Reader) error) error
}

// Options configures an Orchestrator.
type Options struct {
	// Workers bounds concurrent downloads. Zero means twice the CPU count.
	Workers int
	Logger  hclog.Logger
	Metrics metrics.FetchMetrics
}

// DefaultWorkers is the concurrency used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU() * 2
}

// Orchestrator brings a set of artifacts into the store.
type Orchestrator struct {
	store   *store.Store
	client  Downloader
	workers int
	logger  hclog.Logger
	metrics metrics.FetchMetrics
}

// New returns an Orchestrator writing into st and downloading through client.
func New(st *store.Store, client Downloader, opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	return &Orchestrator{
		store:   st,
		client:  client,
		workers: workers,
		logger:  logging.OrNull(opts.Logger).Named("fetch"),
		metrics: m,
	}
}

// run tracks one FetchAll call.
type run struct {
	sink     progress.Sink
	total    int
	done     int64
	inFlight int64
}

func (r *run) completed() int {
	return int(atomic.LoadInt64(&r.done))
}

// FetchAll makes every ref Valid in the store. Refs already valid are
// skipped without network access, so calling it again after a partial run
// only fetches what is missing. A digest mismatch is retried once in a
// second round before it fails the run.
//
// When ctx is cancelled no further downloads are scheduled, in-flight ones
// stop at their next chunk, and ErrCancelled is returned.
func (o *Orchestrator) FetchAll(ctx context.Context, refs []store.Ref, sink progress.Sink) error {
	if sink == nil {
		sink = progress.Discard
	}
	started := time.Now()
	unique := dedupe(refs)
	r := &run{sink: sink, total: len(unique)}

	o.logger.Info("📥 Fetching artifacts", "count", len(unique), "workers", o.workers)

	mismatched, err := o.round(ctx, r, unique, false)
	if err == nil && len(mismatched) > 0 {
		o.logger.Warn("🔁 Re-fetching artifacts that failed verification", "count", len(mismatched))
		_, err = o.round(ctx, r, mismatched, true)
	}

	switch {
	case ctx.Err() != nil:
		o.metrics.ObserveFetchRun("cancelled", time.Since(started).Seconds())
		sink.Report(progress.Event{Kind: progress.Cancelled, Completed: r.completed(), Total: r.total})
		return fmt.Errorf("%w: %d of %d artifacts ready", ErrCancelled, r.completed(), r.total)
	case err != nil:
		o.metrics.ObserveFetchRun("failed", time.Since(started).Seconds())
		sink.Report(progress.Event{Kind: progress.Failed, Completed: r.completed(), Total: r.total, Err: err})
		return err
	}

	o.metrics.ObserveFetchRun("completed", time.Since(started).Seconds())
	sink.Report(progress.Event{Kind: progress.Completed, Completed: r.completed(), Total: r.total})
	o.logger.Info("✅ Artifacts ready", "count", r.total, "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

// round schedules refs in order under the worker bound. Unless final is
// set, digest mismatches are collected and returned instead of failing.
func (o *Orchestrator) round(ctx context.Context, r *run, refs []store.Ref, final bool) ([]store.Ref, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	var mu sync.Mutex
	var mismatched []store.Ref

	for _, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		ref := ref
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := o.fetchOne(gctx, r, ref)
			if err != nil && !final && errors.Is(err, store.ErrDigestMismatch) {
				mu.Lock()
				mismatched = append(mismatched, ref)
				mu.Unlock()
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	return mismatched, err
}

func (o *Orchestrator) fetchOne(ctx context.Context, r *run, ref store.Ref) error {
	kind := ref.Kind.String()

	if o.store.Verify(ref) == store.Valid {
		o.metrics.IncArtifacts(kind, "skipped")
		o.finish(r, ref)
		return nil
	}
	if ref.URL == "" {
		o.metrics.IncArtifacts(kind, "failed")
		return fmt.Errorf("%w: %s", ErrNoSource, ref.Path)
	}

	o.metrics.SetInFlight(int(atomic.AddInt64(&r.inFlight, 1)))
	defer func() {
		o.metrics.SetInFlight(int(atomic.AddInt64(&r.inFlight, -1)))
	}()

	var written int64
	err := o.client.Fetch(ctx, ref.URL, func(body io.Reader) error {
		pr := &progressReader{r: body, ref: ref, sink: r.sink}
		err := o.store.Put(ctx, ref, pr)
		written = pr.done
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.metrics.IncArtifacts(kind, "failed")
		if errors.Is(err, store.ErrDigestMismatch) {
			o.logger.Warn("⚠️ Downloaded artifact failed verification", "path", ref.Path, "url", ref.URL, "error", err)
		}
		return fmt.Errorf("%s: %w", ref.Path, err)
	}

	o.metrics.AddBytes(kind, written)
	o.metrics.IncArtifacts(kind, "fetched")
	o.finish(r, ref)
	return nil
}

func (o *Orchestrator) finish(r *run, ref store.Ref) {
	done := atomic.AddInt64(&r.done, 1)
	o.logger.Trace("📦 Artifact ready", "path", ref.Path)
	r.sink.Report(progress.Event{
		Kind:       progress.ArtifactDone,
		ArtifactID: ref.Path,
		BytesDone:  ref.Size,
		BytesTotal: ref.Size,
		Completed:  int(done),
		Total:      r.total,
	})
}

// dedupe keeps the first occurrence of each ref key.
func dedupe(refs []store.Ref) []store.Ref {
	seen := make(map[string]bool, len(refs))
	out := make([]store.Ref, 0, len(refs))
	for _, ref := range refs {
		if seen[ref.Key()] {
			continue
		}
		seen[ref.Key()] = true
		out = append(out, ref)
	}
	return out
}

type progressReader struct {
	r    io.Reader
	ref  store.Ref
	sink progress.Sink
	done int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.sink.Report(progress.Event{
			Kind:       progress.Bytes,
			ArtifactID: p.ref.Path,
			BytesDone:  p.done,
			BytesTotal: p.ref.Size,
		})
	}
	return n, err
}

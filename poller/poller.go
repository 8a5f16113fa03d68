// Package poller drives the fixed-cadence snapshot refresh for one site.
//
// Every tick restarts the progress indicator and issues a fetch in its own
// goroutine. Ticks never wait on each other, so a slow response can land after
// a newer one; by default whichever resolves last is what the view shows.
// Config.DiscardStale turns on a sequence guard that drops responses older
// than the last applied tick.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pulseboard/analytics"
	"pulseboard/clock"
	"pulseboard/stats"
)

// ErrNoSite is returned by Start when no site id is available. The poller
// stays idle: no ticker and no progress animation.
var ErrNoSite = errors.New("poller: no site id")

// ErrRunning is returned by Start on a poller that is already running.
var ErrRunning = errors.New("poller: already running")

// Fetcher retrieves one snapshot.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, siteID string) (Response, error)
}

// Applier consumes decoded snapshots.
type Applier interface {
	ApplySnapshot(s analytics.Snapshot) error
}

// Progress visualizes the time until the next tick.
type Progress interface {
	Restart(interval time.Duration)
}

// TickResult describes how one tick resolved.
type TickResult struct {
	Seq        uint64
	SiteID     string
	IssuedAt   time.Time
	ResolvedAt time.Time
	Latency    time.Duration
	Outcome    stats.Outcome
	StatusCode int
	Bytes      int
	Digest     uint64
	Repeat     bool
	Err        error
}

// TickObserver receives every resolved tick.
type TickObserver interface {
	ObserveTick(TickResult)
}

// Config controls the refresh cadence.
type Config struct {
	Interval     time.Duration
	DiscardStale bool
}

// Option customizes a Poller.
type Option func(*Poller)

func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithProgress(progress Progress) Option {
	return func(p *Poller) { p.progress = progress }
}

func WithTracker(t *stats.Tracker) Option {
	return func(p *Poller) { p.tracker = t }
}

func WithObserver(o TickObserver) Option {
	return func(p *Poller) { p.observer = o }
}

func WithLogf(logf func(format string, args ...any)) Option {
	return func(p *Poller) {
		if logf != nil {
			p.logf = logf
		}
	}
}

// Poller owns the refresh ticker.
type Poller struct {
	cfg      Config
	fetcher  Fetcher
	applier  Applier
	clock    clock.Clock
	progress Progress
	tracker  *stats.Tracker
	observer TickObserver
	logf     func(format string, args ...any)

	mu     sync.Mutex
	cancel context.CancelFunc
	siteID string

	seq atomic.Uint64
	wg  sync.WaitGroup

	applyMu     sync.Mutex
	lastApplied uint64
	lastDigest  uint64
	haveDigest  bool
}

// New builds an idle poller.
func New(cfg Config, fetcher Fetcher, applier Applier, opts ...Option) *Poller {
	p := &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		applier: applier,
		clock:   clock.Real{},
		logf:    log.Printf,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins ticking for siteID. A blank siteID returns ErrNoSite and
// starts nothing.
func (p *Poller) Start(ctx context.Context, siteID string) error {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return ErrNoSite
	}
	if p.cfg.Interval <= 0 {
		return fmt.Errorf("poller: interval must be positive, got %v", p.cfg.Interval)
	}
	if p.fetcher == nil || p.applier == nil {
		return errors.New("poller: fetcher and applier are required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.siteID = siteID

	ticker := p.clock.NewTicker(p.cfg.Interval)
	if p.progress != nil {
		p.progress.Restart(p.cfg.Interval)
	}
	p.wg.Add(1)
	go p.run(runCtx, ticker, siteID)
	p.logf("Poller: refreshing %s every %s", siteID, p.cfg.Interval)
	return nil
}

// Running reports whether the ticker is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// SiteID returns the site being polled, empty when idle.
func (p *Poller) SiteID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.siteID
}

// Stop cancels the ticker and any in-flight fetches, then waits for them.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.siteID = ""
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, ticker clock.Ticker, siteID string) {
	defer p.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.tick(ctx, siteID)
		}
	}
}

// tick restarts the progress bar first, then issues the fetch without
// waiting for earlier ticks.
func (p *Poller) tick(ctx context.Context, siteID string) {
	p.tracker.Tick()
	if p.progress != nil {
		p.progress.Restart(p.cfg.Interval)
	}
	seq := p.seq.Add(1)
	issued := p.clock.Now()
	p.wg.Add(1)
	go p.fetchAndApply(ctx, seq, siteID, issued)
}

func (p *Poller) fetchAndApply(ctx context.Context, seq uint64, siteID string, issued time.Time) {
	defer p.wg.Done()
	resp, err := p.fetcher.FetchSnapshot(ctx, siteID)
	resolved := p.clock.Now()
	result := TickResult{
		Seq:        seq,
		SiteID:     siteID,
		IssuedAt:   issued,
		ResolvedAt: resolved,
		Latency:    resolved.Sub(issued),
		StatusCode: resp.StatusCode,
		Bytes:      resp.Bytes,
		Digest:     resp.Digest,
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		result.Outcome = Classify(err)
		result.Err = err
		p.logf("Poller: tick %d for %s dropped: %v", seq, siteID, err)
		p.finish(result)
		return
	}

	p.applyMu.Lock()
	if p.cfg.DiscardStale && seq < p.lastApplied {
		latest := p.lastApplied
		p.applyMu.Unlock()
		result.Outcome = stats.OutcomeStale
		p.logf("Poller: tick %d for %s discarded: tick %d already applied", seq, siteID, latest)
		p.finish(result)
		return
	}
	if seq > p.lastApplied {
		p.lastApplied = seq
	}
	result.Repeat = p.haveDigest && p.lastDigest == resp.Digest
	p.lastDigest = resp.Digest
	p.haveDigest = true
	applyErr := p.applier.ApplySnapshot(resp.Snapshot)
	p.applyMu.Unlock()

	if applyErr != nil {
		p.logf("Poller: tick %d for %s applied with error: %v", seq, siteID, applyErr)
	}
	if result.Repeat {
		p.tracker.Repeat()
	}
	result.Outcome = stats.OutcomeOK
	p.finish(result)
}

func (p *Poller) finish(result TickResult) {
	p.tracker.Record(result.Outcome, result.Latency, result.ResolvedAt)
	if p.observer != nil {
		p.observer.ObserveTick(result)
	}
}

package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/cache"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/jxo-me/ddnsd/core/hook"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/core/provider"
	"github.com/jxo-me/ddnsd/core/service"
	"github.com/jxo-me/ddnsd/core/source"
	sdklogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

var (
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrNotStarted     = errors.New("orchestrator not started")
	ErrStopped        = errors.New("orchestrator stopped")
)

type Options struct {
	Name      string
	Interval  time.Duration
	Versions  []ddns.IPVersion
	Source    source.ISource
	Providers []provider.IProvider
	Hooks     []hook.IHook
	Cache     cache.ICache
	DryRun    bool
	Logger    logger.ILogger
}

// Status is a point-in-time view of an orchestrator.
type Status struct {
	Name     string              `json:"name"`
	Running  bool                `json:"running"`
	Interval time.Duration       `json:"interval"`
	DryRun   bool                `json:"dry_run"`
	Last     *service.TickResult `json:"last,omitempty"`
}

// Orchestrator polls the source, compares with the cache and fans record
// changes out to every provider. The cache is only written when all of them
// succeeded.
type Orchestrator struct {
	opts   Options
	logger logger.ILogger

	status int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error

	mu   sync.RWMutex
	last *service.TickResult
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, errors.New("source is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.Errorf("invalid interval %s", opts.Interval)
	}
	if len(opts.Versions) == 0 {
		return nil, errors.New("at least one ip version is required")
	}
	for _, v := range opts.Versions {
		if v != ddns.V4 && v != ddns.V6 {
			return nil, errors.Wrapf(ddns.ErrInvalidVersion, "%d", int(v))
		}
	}
	for i, p := range opts.Providers {
		if p == nil {
			return nil, errors.Errorf("provider #%d is nil", i)
		}
	}
	if opts.Name == "" {
		opts.Name = consts.DefaultDDNSName
	}

	log := opts.Logger
	if log == nil {
		log = sdklogger.Nop()
	}
	log = log.WithFields(map[string]any{"service": opts.Name})
	if len(opts.Providers) == 0 {
		log.Warn("no providers configured, changes will only be cached")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:   opts,
		logger: log,
		status: consts.StatusReady,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

func (o *Orchestrator) String() string {
	return o.opts.Name
}

// Start initializes the cache and launches the poll loop in the background.
// The first tick runs immediately.
func (o *Orchestrator) Start() error {
	if !atomic.CompareAndSwapInt32(&o.status, consts.StatusReady, consts.StatusRunning) {
		if atomic.LoadInt32(&o.status) == consts.StatusClosed {
			return ErrStopped
		}
		return ErrAlreadyStarted
	}

	if err := o.opts.Cache.Init(); err != nil {
		o.err = errors.Wrap(err, "init cache")
		atomic.StoreInt32(&o.status, consts.StatusClosed)
		o.finish()
		return o.err
	}

	go o.loop()
	return nil
}

// Stop requests shutdown. It never blocks; use Wait to join the loop.
func (o *Orchestrator) Stop() {
	o.cancel()
	if atomic.CompareAndSwapInt32(&o.status, consts.StatusReady, consts.StatusClosed) {
		o.finish()
	}
}

// Wait blocks until the loop has exited and any in-flight tick has drained.
func (o *Orchestrator) Wait() error {
	if atomic.LoadInt32(&o.status) == consts.StatusReady {
		return ErrNotStarted
	}
	<-o.done
	return o.err
}

// Done is closed once the loop has exited.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) Status() Status {
	st := Status{
		Name:     o.opts.Name,
		Running:  atomic.LoadInt32(&o.status) == consts.StatusRunning,
		Interval: o.opts.Interval,
		DryRun:   o.opts.DryRun,
	}
	o.mu.RLock()
	if o.last != nil {
		last := *o.last
		last.Providers = append([]service.ProviderResult(nil), o.last.Providers...)
		st.Last = &last
	}
	o.mu.RUnlock()
	return st
}

// Cached reads the record currently held by the cache.
func (o *Orchestrator) Cached() (ddns.Record, bool, error) {
	return o.opts.Cache.Get()
}

func (o *Orchestrator) finish() {
	o.once.Do(func() {
		close(o.done)
	})
}

func (o *Orchestrator) loop() {
	defer func() {
		atomic.StoreInt32(&o.status, consts.StatusStopped)
		o.logger.Info("ddns service stopped")
		o.finish()
	}()

	o.logger.Infof("ddns service started, interval %s, versions %v, %d provider(s)",
		o.opts.Interval, o.opts.Versions, len(o.opts.Providers))

	ticker := time.NewTicker(o.opts.Interval)
	defer ticker.Stop()

	for {
		if o.ctx.Err() != nil {
			return
		}

		// providers must not be interrupted half way, so the tick is not
		// bound to the loop context
		o.RunOnce(context.Background())

		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes one fetch, compare and update cycle synchronously.
func (o *Orchestrator) RunOnce(ctx context.Context) *service.TickResult {
	res := &service.TickResult{
		ID:    uuid.NewString(),
		Start: time.Now(),
	}
	log := o.logger.WithFields(map[string]any{"tick": res.ID})

	res.Record = o.fetch(ctx, log)
	if res.Record.IsEmpty() {
		res.Outcome = service.OutcomeEmpty
		log.Warn("no address could be fetched, skipping update")
		return o.finishTick(log, res)
	}

	prev, ok, err := o.opts.Cache.Get()
	switch {
	case err != nil && errors.Is(err, cache.ErrCorrupt):
		log.Warnf("cache is corrupt, treating as empty: %v", err)
	case err != nil:
		log.Errorf("read cache: %v", err)
	case ok:
		res.CacheHit = true
		res.Previous = prev
	}

	if res.CacheHit && res.Previous.Equal(res.Record) {
		res.Outcome = service.OutcomeUnchanged
		log.Debugf("record unchanged (%s)", res.Record)
		return o.finishTick(log, res)
	}

	if res.CacheHit {
		log.Infof("record changed: %s -> %s", res.Previous, res.Record)
	} else {
		log.Infof("no cached record, publishing %s", res.Record)
	}

	if o.opts.DryRun {
		res.Outcome = service.OutcomeDryRun
		for _, p := range o.opts.Providers {
			log.Infof("dry run: would update %s with %s", p, res.Record)
		}
		o.notify(ctx, log, res)
		return o.finishTick(log, res)
	}

	res.Providers = o.apply(ctx, log, res.Record)

	failed := 0
	for _, pr := range res.Providers {
		if pr.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		res.Outcome = service.OutcomeFailed
		res.Err = errors.Errorf("%d of %d provider(s) failed", failed, len(res.Providers))
	} else if err := o.opts.Cache.Set(res.Record); err != nil {
		res.Outcome = service.OutcomeFailed
		res.Err = errors.Wrap(err, "write cache")
		log.Errorf("all providers succeeded but the cache could not be written: %v", err)
	} else {
		res.Outcome = service.OutcomeCommitted
	}

	o.notify(ctx, log, res)
	return o.finishTick(log, res)
}

func (o *Orchestrator) fetch(ctx context.Context, log logger.ILogger) ddns.Record {
	var record ddns.Record
	for _, v := range o.opts.Versions {
		addr, err := o.opts.Source.Fetch(ctx, v)
		if err != nil {
			log.Warnf("fetch %s address from %s: %v", v, o.opts.Source, err)
			continue
		}
		if !v.Match(addr) {
			log.Warnf("fetch %s address from %s: got %s", v, o.opts.Source, addr)
			continue
		}
		log.Debugf("fetched %s address %s", v, addr)
		record.Set(v, addr)
	}
	return record
}

// apply runs every provider concurrently and waits for all of them.
func (o *Orchestrator) apply(ctx context.Context, log logger.ILogger, record ddns.Record) []service.ProviderResult {
	results := make([]service.ProviderResult, len(o.opts.Providers))

	var wg conc.WaitGroup
	for i, p := range o.opts.Providers {
		i, p := i, p
		wg.Go(func() {
			r := service.ProviderResult{Provider: p.String()}
			var pc panics.Catcher
			pc.Try(func() {
				r.Changed, r.Err = p.Apply(ctx, record)
			})
			if rec := pc.Recovered(); rec != nil {
				r.Changed = false
				r.Err = errors.Errorf("provider panicked: %v", rec.Value)
			}
			results[i] = r
		})
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case r.Err != nil:
			log.Errorf("provider %s: %v", r.Provider, r.Err)
		case r.Changed:
			log.Infof("provider %s updated", r.Provider)
		default:
			log.Debugf("provider %s already up to date", r.Provider)
		}
	}
	return results
}

func (o *Orchestrator) notify(ctx context.Context, log logger.ILogger, res *service.TickResult) {
	for _, h := range o.opts.Hooks {
		if err := h.ExecHook(ctx, res); err != nil {
			log.Warnf("hook %s: %v", h, err)
		}
	}
}

func (o *Orchestrator) finishTick(log logger.ILogger, res *service.TickResult) *service.TickResult {
	res.End = time.Now()
	fields := map[string]any{
		"outcome":  string(res.Outcome),
		"duration": res.End.Sub(res.Start).String(),
	}
	if res.Outcome == service.OutcomeFailed {
		log.WithFields(fields).Errorf("tick finished: %v", res.Err)
	} else {
		log.WithFields(fields).Info("tick finished")
	}

	o.mu.Lock()
	o.last = res
	o.mu.Unlock()
	return res
}

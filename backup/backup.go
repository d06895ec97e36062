package backup

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/utilitywarehouse/git-backup/internal/lock"
	"github.com/utilitywarehouse/git-backup/provider"
	"github.com/utilitywarehouse/git-backup/repository"
)

// Observer is notified about progress of a run. Methods are called
// concurrently from multiple goroutines.
type Observer interface {
	// Discovered is called once per source after discovery
	Discovered(source string, count int)
	// Synced is called once per repository after sync finishes
	Synced(d repository.Descriptor, res repository.Result, err error)
}

// Option configures Backup
type Option func(*Backup)

// WithObserver sets observer notified about run progress
func WithObserver(o Observer) Option {
	return func(b *Backup) { b.observer = o }
}

// WithTransport overrides the transport selected by Config.Transport
func WithTransport(t repository.Transport) Option {
	return func(b *Backup) { b.transport = t }
}

// WithProviders replaces providers built from Config.Sources
func WithProviders(providers ...provider.Provider) Option {
	return func(b *Backup) { b.providers = providers }
}

// WithGitEnvs sets the environment of the git command used by the 'git'
// transport
func WithGitEnvs(envs []string) Option {
	return func(b *Backup) { b.gitEnvs = envs }
}

// WithHTTPClient sets http client used by providers for API calls
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backup) { b.httpClient = c }
}

// Backup runs backup passes over configured sources.
// Run must not be called concurrently.
type Backup struct {
	conf       Config
	log        *slog.Logger
	providers  []provider.Provider
	transport  repository.Transport
	syncer     *repository.Syncer
	observer   Observer
	gitEnvs    []string
	httpClient *http.Client

	// sem limits in-flight syncs, nil when unbounded
	sem chan struct{}

	lock    lock.Mutex
	claimed map[string]string // mirror dir -> repository
	report  Report
}

// New creates Backup from the config. Config must be validated with
// ValidateAndApplyDefaults before.
func New(conf Config, log *slog.Logger, opts ...Option) (*Backup, error) {
	if log == nil {
		log = slog.Default()
	}

	b := &Backup{conf: conf, log: log}
	for _, o := range opts {
		o(b)
	}

	if b.providers == nil {
		providers, err := b.newProviders()
		if err != nil {
			return nil, err
		}
		b.providers = providers
	}

	if b.transport == nil {
		switch conf.Transport {
		case TransportGit:
			b.transport = repository.NewGitCLITransport("", b.gitEnvs, log.With("transport", TransportGit))
		default:
			b.transport = repository.NewGoGitTransport(log.With("transport", TransportGoGit))
		}
	}
	b.syncer = repository.NewSyncer(b.transport, log)

	if conf.Concurrency > 0 {
		b.sem = make(chan struct{}, conf.Concurrency)
	}

	return b, nil
}

func (b *Backup) newProviders() ([]provider.Provider, error) {
	var providers []provider.Provider
	for i, s := range b.conf.Sources {
		switch {
		case s.GitHub != nil:
			// token source outlives any single run
			gh, err := provider.NewGitHub(context.Background(), *s.GitHub, b.log)
			if err != nil {
				return nil, fmt.Errorf("sources[%d]: unable to create github provider err:%w", i, err)
			}
			providers = append(providers, gh)
		case s.GitLab != nil:
			gl, err := provider.NewGitLab(*s.GitLab, b.httpClient, b.log)
			if err != nil {
				return nil, fmt.Errorf("sources[%d]: unable to create gitlab provider err:%w", i, err)
			}
			providers = append(providers, gl)
		}
	}
	return providers, nil
}

// Run executes one backup pass. Every source is discovered concurrently and
// every discovered repository is synced in its own goroutine. Failures are
// logged and counted, Run always returns after all syncs are done.
func (b *Backup) Run(ctx context.Context) Report {
	start := time.Now()

	b.lock.Lock()
	b.claimed = make(map[string]string)
	b.report = Report{Sources: make(map[string]SourceReport)}
	b.lock.Unlock()

	b.log.Info("starting backup", "sources", len(b.providers), "target", b.conf.Target)

	var wg sync.WaitGroup
	for _, p := range b.providers {
		wg.Go(func() {
			b.runSource(ctx, p, &wg)
		})
	}
	wg.Wait()

	b.lock.Lock()
	report := b.report
	b.lock.Unlock()
	report.Duration = time.Since(start)

	recordRun(report, start)
	b.logReport(report)

	return report
}

// runSource discovers repositories of p and schedules their syncs on wg
func (b *Backup) runSource(ctx context.Context, p provider.Provider, wg *sync.WaitGroup) {
	defer b.recoverPanic("discovery of "+p.Name(), func() {
		b.count(p.Name(), func(r *SourceReport) { r.DiscoveryPanicked = true })
	})

	descriptors := p.Repositories(ctx)

	b.count(p.Name(), func(r *SourceReport) { r.Discovered += len(descriptors) })
	if b.observer != nil {
		b.observer.Discovered(p.Name(), len(descriptors))
	}

	for _, d := range descriptors {
		wg.Go(func() {
			b.syncRepository(ctx, p, d)
		})
	}
}

func (b *Backup) syncRepository(ctx context.Context, p provider.Provider, d repository.Descriptor) {
	defer b.recoverPanic("sync of "+d.String(), func() {
		b.record(p.Name(), d, repository.Result{}, fmt.Errorf("panic during sync"))
	})

	if !b.claim(d) {
		return
	}

	if !b.acquire(ctx) {
		b.record(p.Name(), d, repository.Result{}, ctx.Err())
		return
	}
	defer b.release()

	res, err := b.syncer.Sync(ctx, b.conf.Target, d, b.credentials(p))
	b.record(p.Name(), d, res, err)
}

// credentials merges provider http(s) credentials with the ssh key
// configured for the run
func (b *Backup) credentials(p provider.Provider) repository.Auth {
	auth := p.Credentials()
	auth.SSHKeyPath = b.conf.SSHKeyPath
	auth.SSHKnownHostsPath = b.conf.SSHKnownHostsPath
	return auth
}

// claim reserves mirror directory of d for this run. It returns false if
// another repository already maps to the same directory.
func (b *Backup) claim(d repository.Descriptor) bool {
	dir := d.Dir(b.conf.Target)

	b.lock.Lock()
	defer b.lock.Unlock()

	if other, ok := b.claimed[dir]; ok {
		b.log.Warn("skipping repository, mirror path is already used by another repository",
			"repo", d.String(), "url", d.URL, "path", dir, "other", other)
		r := b.report.Sources[d.Source]
		r.Skipped++
		b.report.Sources[d.Source] = r
		return false
	}
	b.claimed[dir] = d.URL
	return true
}

func (b *Backup) acquire(ctx context.Context) bool {
	if b.sem == nil {
		return true
	}
	select {
	case b.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *Backup) release() {
	if b.sem != nil {
		<-b.sem
	}
}

func (b *Backup) record(source string, d repository.Descriptor, res repository.Result, err error) {
	b.count(source, func(r *SourceReport) {
		if err != nil {
			r.Failed++
			return
		}
		switch res.Outcome {
		case repository.OutcomeMirrored:
			r.Mirrored++
		case repository.OutcomeUpdated:
			r.Updated++
		case repository.OutcomeUpToDate:
			r.UpToDate++
		}
	})

	if err != nil {
		b.log.Error("repository sync failed", "repo", d.String(), "url", d.URL, "err", err)
	}

	if b.observer != nil {
		b.observer.Synced(d, res, err)
	}
}

func (b *Backup) count(source string, fn func(*SourceReport)) {
	b.lock.Lock()
	defer b.lock.Unlock()

	r := b.report.Sources[source]
	fn(&r)
	b.report.Sources[source] = r
}

// recoverPanic must be deferred, it logs the panic and calls onPanic so one
// misbehaving source or repository doesn't take down the run
func (b *Backup) recoverPanic(what string, onPanic func()) {
	if r := recover(); r != nil {
		b.log.Error("recovered from panic", "during", what, "panic", r, "stack", string(debug.Stack()))
		onPanic()
	}
}

func (b *Backup) logReport(report Report) {
	for _, name := range slices.Sorted(maps.Keys(report.Sources)) {
		r := report.Sources[name]
		b.log.Info("source backup finished",
			"source", name,
			"discovered", r.Discovered,
			"mirrored", r.Mirrored,
			"updated", r.Updated,
			"up-to-date", r.UpToDate,
			"failed", r.Failed,
			"skipped", r.Skipped,
		)
	}

	total := report.Total()
	b.log.Info("backup finished",
		"duration", report.Duration.Round(time.Millisecond),
		"discovered", total.Discovered,
		"synced", total.Mirrored+total.Updated+total.UpToDate,
		"failed", total.Failed,
		"skipped", total.Skipped,
	)
}

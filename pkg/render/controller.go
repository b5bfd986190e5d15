// Package render keeps a single stack indicator in sync with a page that
// re-renders itself, navigates in place and changes credentials at any time.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
)

// State is the lifecycle state of a Controller.
type State int32

// Controller states.
const (
	Unmounted State = iota
	ProvisionalMounted
	Enriched
	Detached
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case ProvisionalMounted:
		return "provisional"
	case Enriched:
		return "enriched"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DefaultMarker tags every node the controller inserts.
const DefaultMarker = "data-prstack-indicator"

// DefaultSelectors are tried in order; the first match is the insertion target.
var DefaultSelectors = []string{
	"#partial-discussion-header .gh-header-meta",
	".gh-header-meta",
	"#partial-discussion-header",
	".js-issue-title",
}

// DefaultRetryDelays is the mount retry schedule for one attempt cycle.
var DefaultRetryDelays = []time.Duration{0, 500 * time.Millisecond, 2000 * time.Millisecond}

// ChainResolver resolves the lineage of a head branch.
type ChainResolver interface {
	ResolveChain(ctx context.Context, repo prstack.Repo, head string) (*prstack.BranchChain, error)
}

type event interface{ isEvent() }

type (
	pageLoaded        struct{}
	mutated           struct{}
	navigated         struct{ url string }
	credentialChanged struct{ available bool }
	destroyed         struct{}
	retryTick         struct {
		cycle   uint64
		attempt int
	}
	chainResolved struct {
		chain      *prstack.BranchChain
		err        error
		generation uint64
	}
)

func (pageLoaded) isEvent()        {}
func (mutated) isEvent()           {}
func (navigated) isEvent()         {}
func (credentialChanged) isEvent() {}
func (destroyed) isEvent()         {}
func (retryTick) isEvent()         {}
func (chainResolved) isEvent()     {}

type session struct {
	anchor Anchor
	page   PageContext
	pr     prstack.PRContext
	// settled is set once no resolution is pending for this generation.
	settled bool
}

// Controller owns at most one indicator per page-view session.
type Controller struct {
	doc         Document
	resolver    ChainResolver
	creds       prstack.CredentialStore
	messenger   Messenger
	scheduler   Scheduler
	logger      *slog.Logger
	trunks      prstack.TrunkSet
	session     *session
	events      chan event
	done        chan struct{}
	marker      string
	url         string
	selectors   []string
	retryDelays []time.Duration
	cycle       uint64
	generation  atomic.Uint64
	state       atomic.Int32
	runOnce     sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithSelectors sets the prioritized insertion selectors.
func WithSelectors(selectors ...string) Option {
	return func(c *Controller) {
		if len(selectors) > 0 {
			c.selectors = selectors
		}
	}
}

// WithRetryDelays sets the mount retry schedule.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(c *Controller) {
		if len(delays) > 0 {
			c.retryDelays = delays
		}
	}
}

// WithMarker sets the marker carried by inserted indicators.
func WithMarker(marker string) Option {
	return func(c *Controller) {
		if marker != "" {
			c.marker = marker
		}
	}
}

// WithScheduler replaces the timer used for retries.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// WithTrunks sets the trunk names used for provisional classification.
func WithTrunks(trunks prstack.TrunkSet) Option {
	return func(c *Controller) {
		if len(trunks) > 0 {
			c.trunks = trunks
		}
	}
}

// WithMessenger sets where indicators send credential requests.
func WithMessenger(m Messenger) Option {
	return func(c *Controller) {
		c.messenger = m
	}
}

// NewController creates a controller for doc. Call Run to start it.
func NewController(doc Document, resolver ChainResolver, creds prstack.CredentialStore, opts ...Option) *Controller {
	c := &Controller{
		doc:         doc,
		resolver:    resolver,
		creds:       creds,
		scheduler:   timerScheduler{},
		logger:      slog.Default(),
		trunks:      prstack.NewTrunkSet(),
		marker:      DefaultMarker,
		selectors:   DefaultSelectors,
		retryDelays: DefaultRetryDelays,
		events:      make(chan event, 64),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Generation returns the current resolution generation.
func (c *Controller) Generation() uint64 {
	return c.generation.Load()
}

// Marker returns the marker carried by inserted indicators.
func (c *Controller) Marker() string {
	return c.marker
}

// PageLoaded reports that the page finished loading.
func (c *Controller) PageLoaded() { c.post(pageLoaded{}) }

// Mutated reports that the page changed its own content.
func (c *Controller) Mutated() { c.post(mutated{}) }

// Navigated reports an in-place navigation to url.
func (c *Controller) Navigated(url string) { c.post(navigated{url: url}) }

// Destroy tears down the controller and stops Run.
func (c *Controller) Destroy() { c.post(destroyed{}) }

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Run handles events until Destroy is called or ctx is done. It may only be
// called once.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("controller already started")
	}
	defer close(c.done)

	if c.creds != nil {
		cancel := c.creds.Subscribe(func(available bool) {
			c.post(credentialChanged{available: available})
		})
		defer cancel()
	}

	c.url = c.doc.URL()
	c.logger.DebugContext(ctx, "render controller started", "url", c.url)

	for {
		select {
		case <-ctx.Done():
			c.teardown(ctx)
			c.setState(Detached)
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ctx, ev)
			if c.State() == Detached {
				c.logger.DebugContext(ctx, "render controller stopped", "url", c.url)
				return nil
			}
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case pageLoaded, mutated:
		c.trigger(ctx)
	case navigated:
		c.navigate(ctx, ev.url)
	case credentialChanged:
		c.credentialsChanged(ctx, ev.available)
	case destroyed:
		c.teardown(ctx)
		c.setState(Detached)
	case retryTick:
		if ev.cycle == c.cycle {
			c.attempt(ctx, ev.attempt)
		}
	case chainResolved:
		c.applyResolution(ctx, ev)
	}
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// trigger starts a mount cycle, or repairs the mounted indicator.
func (c *Controller) trigger(ctx context.Context) {
	if c.State() != Unmounted {
		c.reconcile(ctx)
		return
	}
	c.cycle++
	c.schedule(ctx, 0)
}

func (c *Controller) schedule(ctx context.Context, attempt int) {
	if attempt >= len(c.retryDelays) {
		return
	}
	delay := c.retryDelays[attempt]
	if delay <= 0 {
		c.attempt(ctx, attempt)
		return
	}
	cycle := c.cycle
	c.scheduler.AfterFunc(delay, func() {
		c.post(retryTick{cycle: cycle, attempt: attempt})
	})
}

func (c *Controller) attempt(ctx context.Context, n int) {
	if c.State() != Unmounted {
		return
	}
	page, anchor, err := c.locate()
	if err != nil {
		if n+1 < len(c.retryDelays) {
			c.logger.DebugContext(ctx, "page not ready, retrying",
				"attempt", n+1, "delay", c.retryDelays[n+1], "error", err)
			c.schedule(ctx, n+1)
			return
		}
		c.logger.DebugContext(ctx, "page not ready, waiting for next mutation", "error", err)
		return
	}

	c.session = &session{
		anchor: anchor,
		page:   page,
		pr:     c.trunks.Classify(page.Owner, page.Repo, page.Base, page.Head),
	}
	c.logger.InfoContext(ctx, "mounting indicator",
		"repo", c.session.pr.Repo().String(), "head", page.Head, "base", page.Base,
		"stacked", c.session.pr.IsStackedPR)
	c.startResolution(ctx)
}

func (c *Controller) locate() (PageContext, Anchor, error) {
	page, err := c.doc.Extract()
	if err != nil {
		return PageContext{}, "", err
	}
	for _, sel := range c.selectors {
		if a, ok := c.doc.Find(sel); ok {
			return page, a, nil
		}
	}
	return PageContext{}, "", ErrMissingDOMTarget
}

// startResolution renders the provisional indicator and kicks off a lookup
// for a new generation.
func (c *Controller) startResolution(ctx context.Context) {
	gen := c.generation.Add(1)
	c.session.pr = c.session.pr.WithChain(nil)
	c.session.settled = !prstack.Available(c.creds) || c.resolver == nil
	if !c.render(ctx, PhaseProvisional, ProvisionalMounted) {
		return
	}

	if c.session.settled {
		c.logger.DebugContext(ctx, "nothing to resolve, keeping provisional indicator",
			"credential", prstack.Available(c.creds))
		return
	}

	repo, head := c.session.pr.Repo(), c.session.pr.HeadBranch
	go func() {
		chain, err := c.resolver.ResolveChain(ctx, repo, head)
		c.post(chainResolved{generation: gen, chain: chain, err: err})
	}()
}

// render replaces any marked nodes with a fresh indicator. It reports
// whether the indicator was inserted.
func (c *Controller) render(ctx context.Context, phase Phase, next State) bool {
	c.doc.RemoveMarked(c.marker)
	ind := newIndicator(c.marker, c.generation.Load(), c.session.pr, phase, !prstack.Available(c.creds), c.messenger)
	ind.Settled = c.session.settled
	if err := c.doc.Insert(c.session.anchor, ind); err != nil {
		c.logger.WarnContext(ctx, "failed to insert indicator", "anchor", c.session.anchor, "error", err)
		c.generation.Add(1)
		c.session = nil
		c.setState(Unmounted)
		return false
	}
	c.setState(next)
	return true
}

func (c *Controller) applyResolution(ctx context.Context, ev chainResolved) {
	if ev.generation != c.generation.Load() || c.session == nil {
		c.logger.DebugContext(ctx, "discarding stale chain resolution",
			"generation", ev.generation, "current", c.generation.Load())
		return
	}

	switch {
	case ev.err == nil:
	case errors.Is(ev.err, prstack.ErrCycleOrTooDeep) && ev.chain.Len() > 0:
		c.logger.WarnContext(ctx, "lineage truncated", "head", c.session.pr.HeadBranch, "error", ev.err)
	case errors.Is(ev.err, prstack.ErrNoCredential):
		c.logger.InfoContext(ctx, "credential missing, keeping provisional indicator")
		c.settle(ctx)
		return
	default:
		c.logger.WarnContext(ctx, "chain resolution failed, keeping provisional indicator",
			"head", c.session.pr.HeadBranch, "error", ev.err)
		c.settle(ctx)
		return
	}

	c.session.pr = c.session.pr.WithChain(ev.chain)
	if c.render(ctx, PhaseEnriched, Enriched) {
		c.logger.InfoContext(ctx, "indicator enriched",
			"head", c.session.pr.HeadBranch, "nodes", ev.chain.Len(), "truncated", ev.chain.Truncated)
	}
}

// settle re-renders the provisional indicator with no resolution pending.
func (c *Controller) settle(ctx context.Context) {
	c.session.settled = true
	c.render(ctx, PhaseProvisional, ProvisionalMounted)
}

// reconcile handles a page mutation while an indicator is mounted.
func (c *Controller) reconcile(ctx context.Context) {
	if c.session == nil {
		return
	}
	if page, err := c.doc.Extract(); err == nil && page != c.session.page {
		c.logger.InfoContext(ctx, "page context changed, starting a new session",
			"from", c.session.page.Head+"..."+c.session.page.Base, "to", page.Head+"..."+page.Base)
		c.teardown(ctx)
		c.trigger(ctx)
		return
	}
	if c.doc.Count(c.marker) > 0 {
		return
	}

	if _, ok := c.doc.Find(string(c.session.anchor)); !ok {
		for _, sel := range c.selectors {
			if a, ok := c.doc.Find(sel); ok {
				c.session.anchor = a
				break
			}
		}
	}
	phase := PhaseProvisional
	if c.State() == Enriched {
		phase = PhaseEnriched
	}
	c.logger.DebugContext(ctx, "indicator removed by page, re-inserting", "phase", phase)
	if !c.render(ctx, phase, c.State()) {
		c.trigger(ctx)
	}
}

func (c *Controller) navigate(ctx context.Context, url string) {
	if url == c.url {
		c.trigger(ctx)
		return
	}
	c.logger.InfoContext(ctx, "navigation detected, starting a new session", "from", c.url, "to", url)
	c.teardown(ctx)
	c.url = url
	c.trigger(ctx)
}

func (c *Controller) credentialsChanged(ctx context.Context, available bool) {
	if c.session == nil {
		if available && c.State() == Unmounted {
			c.trigger(ctx)
		}
		return
	}
	c.logger.InfoContext(ctx, "credential changed, re-resolving", "available", available)
	p := c.session.page
	c.session.pr = c.trunks.Classify(p.Owner, p.Repo, p.Base, p.Head)
	c.startResolution(ctx)
}

// teardown drops the session, removes marked nodes and invalidates pending
// retries and resolutions.
func (c *Controller) teardown(ctx context.Context) {
	c.generation.Add(1)
	c.cycle++
	if n := c.doc.RemoveMarked(c.marker); n > 0 {
		c.logger.DebugContext(ctx, "removed indicators", "count", n)
	}
	c.session = nil
	c.setState(Unmounted)
}

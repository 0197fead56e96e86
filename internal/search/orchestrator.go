package search

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/FranksOps/imgsearch/internal/observable"
	"github.com/rivo/uniseg"
)

// ErrClosed is returned by Trigger after Close.
var ErrClosed = errors.New("search: orchestrator closed")

// MinWordLength is the number of user-perceived characters (grapheme
// clusters) a search word needs before a search can be started.
const MinWordLength = 3

// State is a snapshot of the orchestrator's search state.
type State struct {
	SearchWord    string
	Loading       bool
	ButtonEnabled bool
	Items         []string
	Err           error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithContext sets the context fetches run under. Defaults to
// context.Background(); closing the orchestrator does not cancel it.
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithOnResult registers fn to be called after each cycle's result has been
// applied to the state.
func WithOnResult(fn func(Result)) Option {
	return func(o *Orchestrator) { o.onResult = fn }
}

// Orchestrator owns the search state. Inputs are SetSearchWord and Trigger;
// outputs are the Subscribe* streams, each of which delivers the current
// value on subscribe and then every change.
//
// Every trigger runs its own cycle and nothing is cancelled, so results are
// applied in completion order: a slow earlier search that finishes last
// overwrites a faster later one. Loading stays true until the most recently
// triggered cycle completes.
//
// Subscribers run synchronously on the goroutine that caused the change and
// must not call back into the Orchestrator.
type Orchestrator struct {
	client   Client
	logger   *slog.Logger
	ctx      context.Context
	now      func() time.Time
	onResult func(Result)

	mu         sync.Mutex
	idle       *sync.Cond
	closed     bool
	generation uint64
	inFlight   int

	searchWord    *observable.Value[string]
	buttonEnabled *observable.Value[bool]
	loading       *observable.Value[bool]
	items         *observable.Value[[]string]
	err           *observable.Value[error]
	bag           observable.Bag
}

// New returns an Orchestrator in the idle state with an empty search word.
func New(client Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:        client,
		logger:        slog.Default(),
		ctx:           context.Background(),
		now:           time.Now,
		searchWord:    observable.NewValue(""),
		buttonEnabled: observable.NewValue(false),
		loading:       observable.NewValue(false),
		items:         observable.NewValue([]string{}),
		err:           observable.NewValue[error](nil),
	}
	o.idle = sync.NewCond(&o.mu)
	for _, opt := range opts {
		opt(o)
	}

	o.bag.Add(o.searchWord.Subscribe(func(word string) {
		o.buttonEnabled.Set(uniseg.GraphemeClusterCount(word) >= MinWordLength)
	}))

	return o
}

// SetSearchWord records the text the next Trigger will search for.
func (o *Orchestrator) SetSearchWord(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.searchWord.Set(text)
}

// Trigger starts a search for the current word. Loading is published as
// true before Trigger returns; the fetch runs on its own goroutine.
func (o *Orchestrator) Trigger() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.generation++
	gen := o.generation
	query := o.searchWord.Get()
	o.loading.Set(true)
	o.inFlight++
	o.mu.Unlock()

	go o.run(gen, query)
	return nil
}

func (o *Orchestrator) run(gen uint64, query string) {
	defer o.done()

	o.logger.Debug("search started", "query", query, "generation", gen)
	res := runCycle(o.ctx, o.client, query, o.now)
	if res.Err != nil {
		o.logger.Warn("search failed", "cycle_id", res.ID, "query", query, "duration", res.Duration, "err", res.Err)
	} else {
		o.logger.Info("search completed", "cycle_id", res.ID, "query", query, "items", len(res.Items), "duration", res.Duration)
	}

	o.mu.Lock()
	if gen == o.generation {
		o.loading.Set(false)
	}
	if res.Err != nil {
		o.err.Set(res.Err)
	} else {
		o.items.Set(slices.Clone(res.Items))
	}
	o.mu.Unlock()

	if o.onResult != nil {
		o.onResult(res)
	}
}

// SubscribeItems streams the current result list. The slice passed to fn
// must not be modified.
func (o *Orchestrator) SubscribeItems(fn func([]string)) (cancel func()) {
	return o.items.Subscribe(fn)
}

// SubscribeLoading streams whether the latest search is outstanding.
func (o *Orchestrator) SubscribeLoading(fn func(bool)) (cancel func()) {
	return o.loading.Subscribe(fn)
}

// SubscribeButtonEnabled streams whether the search word is long enough to search.
func (o *Orchestrator) SubscribeButtonEnabled(fn func(bool)) (cancel func()) {
	return o.buttonEnabled.Subscribe(fn)
}

// SubscribeError streams the most recent search error. A later success
// does not clear it.
func (o *Orchestrator) SubscribeError(fn func(error)) (cancel func()) {
	return o.err.Subscribe(fn)
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		SearchWord:    o.searchWord.Get(),
		Loading:       o.loading.Get(),
		ButtonEnabled: o.buttonEnabled.Get(),
		Items:         slices.Clone(o.items.Get()),
		Err:           o.err.Get(),
	}
}

func (o *Orchestrator) done() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
	if o.inFlight == 0 {
		o.idle.Broadcast()
	}
}

// Wait blocks until every triggered cycle has been applied. It may be called
// concurrently with Trigger; cycles triggered while waiting are waited for too.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.inFlight > 0 {
		o.idle.Wait()
	}
}

// Close releases internal subscriptions and drops every stream subscriber.
// In-flight searches still complete but publish to nobody.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.bag.Release()
	o.searchWord.Close()
	o.buttonEnabled.Close()
	o.loading.Close()
	o.items.Close()
	o.err.Close()
}

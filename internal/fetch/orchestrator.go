package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"threadscope/internal/metrics"
	"threadscope/internal/model"
	"threadscope/internal/reddit"
	"threadscope/internal/resolve"
)

const (
	ChannelPosts      = "posts"
	ChannelThread     = "thread"
	ChannelCategories = "categories"
)

// maxMoreChildren is the most ids /api/morechildren accepts per call.
const maxMoreChildren = 100

// DefaultDebounce is the quiescence interval for search-term triggers.
const DefaultDebounce = 300 * time.Millisecond

// Options tunes an Orchestrator.
type Options struct {
	// Debounce delays fetches for locations with a search term. Zero disables it.
	Debounce time.Duration
	Metrics  *metrics.Fetch
}

// Orchestrator turns triggers into fetches and publishes the post-list and
// thread channels. All transitions happen on the goroutine running Start;
// the trigger methods only enqueue events and return.
type Orchestrator struct {
	transport Transport
	resolver  resolve.Resolver
	norm      reddit.Normalizer
	debounce  time.Duration
	metrics   *metrics.Fetch

	events chan event
	done   chan struct{}

	posts  *Channel[[]model.Post]
	thread *Channel[model.Thread]

	// owned by the loop goroutine
	ctx          context.Context
	lastID       uint64
	loc          model.Location
	hasLoc       bool
	postsFlight  flight
	threadFlight flight
	pending      *pendingFetch
	pendingSeq   uint64
	timer        *time.Timer
	postsRetry   func(id uint64)
	threadRetry  func(id uint64)
	// cache keys of the thread last opened and of the one behind the stale tree
	openedThread string
	loadedThread string
}

type flight struct {
	id     uint64
	key    string
	cancel context.CancelFunc
}

func (f flight) active() bool { return f.cancel != nil }

type pendingFetch struct {
	id     uint64
	target resolve.Target
}

type event interface{}

type (
	setLocationEvent struct{ loc model.Location }
	openThreadEvent  struct{ permalink string }
	retryEvent       struct{}
	refreshEvent     struct{}
	expandEvent      struct{ stubID string }
	debounceEvent    struct{ seq uint64 }
	resultEvent      struct{ finish func() }
)

// New creates an orchestrator. Call Start to begin processing triggers.
func New(t Transport, r resolve.Resolver, opts Options) *Orchestrator {
	return &Orchestrator{
		transport: t,
		resolver:  r,
		norm:      reddit.NewNormalizer(r),
		debounce:  opts.Debounce,
		metrics:   opts.Metrics,
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		posts:     NewChannel[[]model.Post](ChannelPosts),
		thread:    NewChannel[model.Thread](ChannelThread),
	}
}

// Posts is the post-list channel.
func (o *Orchestrator) Posts() *Channel[[]model.Post] { return o.posts }

// Thread is the comment-tree channel.
func (o *Orchestrator) Thread() *Channel[model.Thread] { return o.thread }

// SetLocation navigates the post list.
func (o *Orchestrator) SetLocation(loc model.Location) { o.post(setLocationEvent{loc: loc}) }

// OpenThread loads the comments of the post at permalink.
func (o *Orchestrator) OpenThread(permalink string) {
	o.post(openThreadEvent{permalink: permalink})
}

// Retry re-issues the last trigger of every channel currently in error.
func (o *Orchestrator) Retry() { o.post(retryEvent{}) }

// Refresh re-fetches the post list for the current location.
func (o *Orchestrator) Refresh() { o.post(refreshEvent{}) }

// Expand resolves the continuation stub with the given id in the current thread.
func (o *Orchestrator) Expand(stubID string) { o.post(expandEvent{stubID: stubID}) }

// Start runs the event loop until ctx is done. It must be called once.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.ctx = ctx
	defer close(o.done)
	defer o.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) handle(ev event) {
	switch ev := ev.(type) {
	case setLocationEvent:
		o.setLocation(ev.loc)
	case openThreadEvent:
		o.openThread(ev.permalink)
	case retryEvent:
		o.retry()
	case refreshEvent:
		o.refresh()
	case expandEvent:
		o.expand(ev.stubID)
	case debounceEvent:
		o.fireDebounced(ev.seq)
	case resultEvent:
		ev.finish()
	}
}

func (o *Orchestrator) nextID() uint64 {
	o.lastID++
	return o.lastID
}

func (o *Orchestrator) setLocation(loc model.Location) {
	loc.Path = resolve.CanonicalPath(loc.Path)
	if loc.Path == "" {
		loc.Path = "/"
	}
	target := o.resolver.Resolve(loc)
	o.loc, o.hasLoc = loc, true

	if o.pending == nil && o.postsFlight.active() && o.postsFlight.key == target.CacheKey {
		slog.Debug("fetch: identical request already in flight", "url", target.URL)
		return
	}

	id := o.nextID()
	o.posts.begin(id)
	cancelFlight(&o.postsFlight)

	if strings.TrimSpace(loc.SearchTerm) != "" && o.debounce > 0 {
		o.schedule(id, target)
		return
	}
	o.stopDebounce()
	o.fetchPosts(id, target)
}

func (o *Orchestrator) schedule(id uint64, target resolve.Target) {
	o.stopDebounce()
	o.pendingSeq++
	seq := o.pendingSeq
	o.pending = &pendingFetch{id: id, target: target}
	o.timer = time.AfterFunc(o.debounce, func() { o.post(debounceEvent{seq: seq}) })
}

func (o *Orchestrator) stopDebounce() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.pending = nil
}

func (o *Orchestrator) fireDebounced(seq uint64) {
	if o.pending == nil || seq != o.pendingSeq {
		return
	}
	p := o.pending
	o.pending, o.timer = nil, nil
	if o.posts.current() != p.id {
		return
	}
	o.fetchPosts(p.id, p.target)
}

func (o *Orchestrator) fetchPosts(id uint64, target resolve.Target) {
	o.postsRetry = func(id uint64) { o.fetchPosts(id, target) }
	launch(o, o.posts, &o.postsFlight, id, target.CacheKey, func(ctx context.Context) ([]model.Post, error) {
		doc, err := o.transport.FetchJSON(ctx, target.URL)
		if err != nil {
			return nil, err
		}
		return o.norm.NormalizeListing(doc)
	}, nil)
}

func (o *Orchestrator) openThread(permalink string) {
	target := o.resolver.Thread(permalink)
	o.openedThread = target.CacheKey
	if o.threadFlight.active() && o.threadFlight.key == target.CacheKey {
		slog.Debug("fetch: identical request already in flight", "url", target.URL)
		return
	}
	id := o.nextID()
	o.thread.begin(id)
	cancelFlight(&o.threadFlight)
	o.fetchThread(id, target)
}

func (o *Orchestrator) fetchThread(id uint64, target resolve.Target) {
	o.threadRetry = func(id uint64) { o.fetchThread(id, target) }
	loaded := func() { o.loadedThread = target.CacheKey }
	launch(o, o.thread, &o.threadFlight, id, target.CacheKey, func(ctx context.Context) (model.Thread, error) {
		doc, err := o.transport.FetchJSON(ctx, target.URL)
		if err != nil {
			return model.Thread{}, err
		}
		return o.norm.BuildThread(doc)
	}, loaded)
}

func (o *Orchestrator) retry() {
	retried := false
	if o.posts.State().Status == StatusError && o.postsRetry != nil {
		id := o.nextID()
		o.posts.begin(id)
		o.postsRetry(id)
		retried = true
	}
	if o.thread.State().Status == StatusError && o.threadRetry != nil {
		id := o.nextID()
		o.thread.begin(id)
		o.threadRetry(id)
		retried = true
	}
	if !retried {
		slog.Debug("fetch: retry with no channel in error")
	}
}

func (o *Orchestrator) refresh() {
	if !o.hasLoc {
		return
	}
	id := o.nextID()
	o.posts.begin(id)
	cancelFlight(&o.postsFlight)
	o.stopDebounce()
	o.fetchPosts(id, o.resolver.Resolve(o.loc))
}

func (o *Orchestrator) expand(stubID string) {
	if o.thread.State().Status == StatusLoading {
		slog.Warn("fetch: expand ignored while thread is loading", "stub", stubID)
		return
	}
	base, ok := o.thread.Stale()
	if !ok {
		slog.Warn("fetch: expand without a loaded thread", "stub", stubID)
		return
	}
	// The stale tree may belong to a thread the user has since left.
	if o.loadedThread != o.openedThread {
		slog.Warn("fetch: expand ignored, loaded tree is not the open thread", "stub", stubID, "post", base.Post.ID)
		return
	}
	stub, ok := FindStub(base.Comments, stubID)
	if !ok {
		slog.Warn("fetch: expand of unknown stub", "stub", stubID, "post", base.Post.ID)
		return
	}

	id := o.nextID()
	o.thread.begin(id)
	cancelFlight(&o.threadFlight)

	// An empty stub directly under the post has nothing left to load.
	if len(stub.ChildIDs) == 0 && !strings.HasPrefix(stub.ParentID, "t1_") {
		comments, _ := Splice(base.Comments, stub.ID, nil)
		o.thread.succeed(id, model.Thread{Post: base.Post, Comments: comments})
		return
	}

	run := o.expansion(base, stub)
	o.threadRetry = func(id uint64) {
		launch(o, o.thread, &o.threadFlight, id, "expand:"+stub.ID, run, nil)
	}
	launch(o, o.thread, &o.threadFlight, id, "expand:"+stub.ID, run, nil)
}

// expansion fetches the nodes behind stub and splices them into base.
func (o *Orchestrator) expansion(base model.Thread, stub *model.MoreStub) func(context.Context) (model.Thread, error) {
	return func(ctx context.Context) (model.Thread, error) {
		var (
			nodes []model.Node
			rest  []string
		)
		if len(stub.ChildIDs) == 0 {
			t := o.resolver.ContinueThread(base.Post.PermalinkURL, strings.TrimPrefix(stub.ParentID, "t1_"))
			doc, err := o.transport.FetchJSON(ctx, t.URL)
			if err != nil {
				return model.Thread{}, err
			}
			if nodes, err = o.norm.ContinuedReplies(doc, stub.ParentID); err != nil {
				return model.Thread{}, err
			}
		} else {
			ids := stub.ChildIDs
			if len(ids) > maxMoreChildren {
				ids, rest = ids[:maxMoreChildren], ids[maxMoreChildren:]
			}
			t := o.resolver.MoreChildren(base.Post.ID, ids)
			doc, err := o.transport.FetchJSON(ctx, t.URL)
			if err != nil {
				return model.Thread{}, err
			}
			if nodes, err = o.norm.BuildMoreChildren(doc); err != nil {
				return model.Thread{}, err
			}
		}
		if len(rest) > 0 {
			nodes = append(nodes, &model.MoreStub{
				ID:       stub.ID + "+",
				ParentID: stub.ParentID,
				ChildIDs: rest,
				Count:    max(stub.Count-maxMoreChildren, len(rest)),
			})
		}
		comments, ok := Splice(base.Comments, stub.ID, nodes)
		if !ok {
			return model.Thread{}, fmt.Errorf("fetch: stub %s not in thread %s", stub.ID, base.Post.ID)
		}
		return model.Thread{Post: base.Post, Comments: comments}, nil
	}
}

func (o *Orchestrator) shutdown() {
	o.stopDebounce()
	cancelFlight(&o.postsFlight)
	cancelFlight(&o.threadFlight)
}

func cancelFlight(f *flight) {
	if f.cancel != nil {
		f.cancel()
	}
	*f = flight{}
}

// launch runs fn off the loop and feeds its outcome back as an event.
// onSuccess, if set, runs on the loop once the result is published.
func launch[T any](o *Orchestrator, ch *Channel[T], fl *flight, id uint64, key string, fn func(context.Context) (T, error), onSuccess func()) {
	cancelFlight(fl)
	ctx, cancel := context.WithCancel(o.ctx)
	*fl = flight{id: id, key: key, cancel: cancel}
	o.metrics.Request(ch.Name())
	go func() {
		start := time.Now()
		data, err := fn(ctx)
		o.metrics.Observe(ch.Name(), time.Since(start))
		o.post(resultEvent{finish: func() { finish(o, ch, fl, id, data, err, onSuccess) }})
	}()
}

func finish[T any](o *Orchestrator, ch *Channel[T], fl *flight, id uint64, data T, err error, onSuccess func()) {
	if fl.id == id {
		cancelFlight(fl)
	}
	if ch.current() != id {
		o.metrics.Discard(ch.Name())
		slog.Debug("fetch: discarded superseded result", "channel", ch.Name(), "request_id", id)
		return
	}
	if err != nil {
		kind := Classify(err)
		if ch.fail(id, kind, err) {
			o.metrics.Error(ch.Name(), kind.String())
			slog.Warn("fetch: request failed", "channel", ch.Name(), "request_id", id, "kind", kind.String(), "error", err)
		}
		return
	}
	if ch.succeed(id, data) && onSuccess != nil {
		onSuccess()
	}
}

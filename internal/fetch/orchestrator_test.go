package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadscope/internal/metrics"
	"threadscope/internal/model"
	"threadscope/internal/reddit"
)

func TestOrchestratorLoadsPosts(t *testing.T) {
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		return listingJSON("a", "b"), nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.SetLocation(model.Location{Path: "/r/go/", Mode: model.ListingHot})

	st := waitFor(t, o.Posts(), isSuccess[[]model.Post])
	assert.Equal(t, []string{"a", "b"}, postIDs(st.Data))
	assert.Equal(t, []string{testHost + "/r/go/hot.json"}, ft.Calls())
}

func TestOrchestratorSupersededResultIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		if strings.Contains(url, "/r/slow") {
			close(started)
			<-gate
			return listingJSON("slow"), nil
		}
		return listingJSON("fast"), nil
	}}
	m := metrics.NewFetch(prometheus.NewRegistry())
	o := New(ft, testResolver(), Options{Metrics: m})
	startOrchestrator(t, o)

	o.SetLocation(model.Location{Path: "/r/slow"})
	<-started
	o.SetLocation(model.Location{Path: "/r/fast"})

	st := waitFor(t, o.Posts(), isSuccess[[]model.Post])
	assert.Equal(t, []string{"fast"}, postIDs(st.Data))

	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Superseded.WithLabelValues(ChannelPosts)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	final := o.Posts().State()
	assert.Equal(t, st.RequestID, final.RequestID)
	assert.Equal(t, []string{"fast"}, postIDs(final.Data))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues(ChannelPosts)))
}

func TestOrchestratorDebouncesSearch(t *testing.T) {
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		return listingJSON("hit"), nil
	}}
	o := New(ft, testResolver(), Options{Debounce: 50 * time.Millisecond})
	startOrchestrator(t, o)

	var loading atomic.Int32
	o.Posts().Subscribe(func(s State[[]model.Post]) {
		if s.Status == StatusLoading {
			loading.Add(1)
		}
	})

	for _, term := range []string{"p", "pi", "pie"} {
		o.SetLocation(model.Location{Path: "/r/food", SearchTerm: term})
	}

	waitFor(t, o.Posts(), isSuccess[[]model.Post])
	calls := ft.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testHost+"/r/food.json?q=pie", calls[0])
	assert.Equal(t, int32(3), loading.Load(), "every trigger publishes loading")
}

func TestOrchestratorIgnoresDuplicateInFlight(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		if strings.Contains(url, "/r/go") {
			<-gate
		}
		return `[{"data":{"children":[{"kind":"t3","data":{"id":"p"}}]}},{"data":{"children":[]}}]`, nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.SetLocation(model.Location{Path: "/r/go"})
	o.SetLocation(model.Location{Path: "/r/go/"})
	// events are handled in order, so the thread fetch marks the point
	// where both location triggers have been processed.
	o.OpenThread("/r/x/comments/p/title/")
	waitFor(t, o.Thread(), isSuccess[model.Thread])

	assert.Equal(t, 1, ft.CallsMatching("/r/go"))
	assert.Equal(t, StatusLoading, o.Posts().State().Status)
}

func TestOrchestratorErrorKeepsStaleData(t *testing.T) {
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		if strings.Contains(url, "/r/busy") {
			return "", &reddit.StatusError{URL: url, Code: http.StatusTooManyRequests}
		}
		return listingJSON("a"), nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.SetLocation(model.Location{Path: "/r/calm"})
	waitFor(t, o.Posts(), isSuccess[[]model.Post])

	o.SetLocation(model.Location{Path: "/r/busy"})
	st := waitFor(t, o.Posts(), isError[[]model.Post])
	assert.Equal(t, RateLimited, st.Kind)
	assert.Error(t, st.Err)

	stale, ok := o.Posts().Stale()
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, postIDs(stale))
}

func TestOrchestratorNotFoundAndMalformed(t *testing.T) {
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		if strings.Contains(url, "/r/gone") {
			return "", &reddit.StatusError{URL: url, Code: http.StatusFound}
		}
		return `{"kind":"Listing"}`, nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.SetLocation(model.Location{Path: "/r/gone"})
	st := waitFor(t, o.Posts(), isError[[]model.Post])
	assert.Equal(t, NotFound, st.Kind)

	o.SetLocation(model.Location{Path: "/r/odd"})
	st = waitFor(t, o.Posts(), func(s State[[]model.Post]) bool {
		return s.Status == StatusError && s.Kind != NotFound
	})
	assert.Equal(t, MalformedPayload, st.Kind)
}

func TestOrchestratorRetry(t *testing.T) {
	var attempts atomic.Int32
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		if attempts.Add(1) == 1 {
			return "", context.DeadlineExceeded
		}
		return listingJSON("ok"), nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.SetLocation(model.Location{Path: "/r/flaky"})
	st := waitFor(t, o.Posts(), isError[[]model.Post])
	assert.Equal(t, NetworkUnreachable, st.Kind)

	o.Retry()
	st = waitFor(t, o.Posts(), isSuccess[[]model.Post])
	assert.Equal(t, []string{"ok"}, postIDs(st.Data))
	assert.Equal(t, []string{testHost + "/r/flaky.json", testHost + "/r/flaky.json"}, ft.Calls())
}

func TestOrchestratorRefresh(t *testing.T) {
	var n atomic.Int32
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		if n.Add(1) == 1 {
			return listingJSON("first"), nil
		}
		return listingJSON("second"), nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.SetLocation(model.Location{Path: "/r/go"})
	first := waitFor(t, o.Posts(), isSuccess[[]model.Post])

	o.Refresh()
	st := waitFor(t, o.Posts(), func(s State[[]model.Post]) bool {
		return s.Status == StatusSuccess && s.RequestID > first.RequestID
	})
	assert.Equal(t, []string{"second"}, postIDs(st.Data))
}

const expandThread = `[
  {"kind":"Listing","data":{"children":[
    {"kind":"t3","data":{"id":"p1","title":"Post","permalink":"/r/go/comments/p1/post/"}}
  ]}},
  {"kind":"Listing","data":{"children":[
    {"kind":"t1","data":{"id":"c1","body":"top","replies":{"kind":"Listing","data":{"children":[
      {"kind":"t1","data":{"id":"c1a","body":"reply"}},
      {"kind":"more","data":{"id":"m1","parent_id":"t1_c1","children":["x1","x2"],"count":2}}
    ]}}}},
    {"kind":"t1","data":{"id":"c2","body":"deep","replies":{"kind":"Listing","data":{"children":[
      {"kind":"more","data":{"id":"_","parent_id":"t1_c2","children":[],"count":0}}
    ]}}}},
    {"kind":"more","data":{"id":"_","parent_id":"t3_p1","children":[],"count":0}}
  ]}}
]`

const moreChildrenResponse = `{"json":{"errors":[],"data":{"things":[
  {"kind":"t1","data":{"id":"x1","parent_id":"t1_c1","body":"one"}},
  {"kind":"t1","data":{"id":"x1a","parent_id":"t1_x1","body":"nested"}},
  {"kind":"t1","data":{"id":"x2","parent_id":"t1_c1","body":"two"}}
]}}}`

const continueResponse = `[
  {"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"p1"}}]}},
  {"kind":"Listing","data":{"children":[
    {"kind":"t1","data":{"id":"c2","replies":{"kind":"Listing","data":{"children":[
      {"kind":"t1","data":{"id":"d1","body":"continued"}}
    ]}}}}
  ]}}
]`

func expandTransport() *fakeTransport {
	return &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		switch {
		case strings.Contains(url, "/api/morechildren"):
			return moreChildrenResponse, nil
		case strings.Contains(url, "/post/c2.json"):
			return continueResponse, nil
		default:
			return expandThread, nil
		}
	}}
}

func childIDs(n model.Node) []string {
	return ids(n.(*model.Comment).Children)
}

func TestOrchestratorExpandMoreChildren(t *testing.T) {
	ft := expandTransport()
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.OpenThread("/r/go/comments/p1/post/")
	before := waitFor(t, o.Thread(), isSuccess[model.Thread])

	o.Expand("m1")
	st := waitFor(t, o.Thread(), func(s State[model.Thread]) bool {
		return s.Status == StatusSuccess && s.RequestID > before.RequestID
	})

	assert.Equal(t, []string{"c1a", "x1", "x2"}, childIDs(st.Data.Comments[0]))
	x1 := st.Data.Comments[0].(*model.Comment).Children[1]
	assert.Equal(t, []string{"x1a"}, childIDs(x1))
	assert.Equal(t, []string{"c1a", "m1"}, childIDs(before.Data.Comments[0]), "previous tree is unchanged")

	assert.Equal(t, 1, ft.CallsMatching("link_id=t3_p1"))
	assert.Equal(t, 1, ft.CallsMatching("children=x1%2Cx2"))
}

func TestOrchestratorExpandContinueThread(t *testing.T) {
	ft := expandTransport()
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.OpenThread("/r/go/comments/p1/post/")
	before := waitFor(t, o.Thread(), isSuccess[model.Thread])
	stub := before.Data.Comments[1].(*model.Comment).Children[0].(*model.MoreStub)

	o.Expand(stub.ID)
	st := waitFor(t, o.Thread(), func(s State[model.Thread]) bool {
		return s.Status == StatusSuccess && s.RequestID > before.RequestID
	})
	assert.Equal(t, []string{"d1"}, childIDs(st.Data.Comments[1]))
	assert.Equal(t, []string{testHost + "/r/go/comments/p1/post/c2.json"}, ft.Calls()[1:])
}

func TestOrchestratorExpandEmptyTopLevelStub(t *testing.T) {
	ft := expandTransport()
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.OpenThread("/r/go/comments/p1/post/")
	before := waitFor(t, o.Thread(), isSuccess[model.Thread])
	require.Len(t, before.Data.Comments, 3)
	stub := before.Data.Comments[2].(*model.MoreStub)

	o.Expand(stub.ID)
	st := waitFor(t, o.Thread(), func(s State[model.Thread]) bool {
		return s.Status == StatusSuccess && s.RequestID > before.RequestID
	})
	assert.Equal(t, []string{"c1", "c2"}, ids(st.Data.Comments))
	assert.Len(t, ft.Calls(), 1, "no transport call for an empty stub under the post")
}

func TestOrchestratorExpandFailureKeepsTree(t *testing.T) {
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		if strings.Contains(url, "/api/morechildren") {
			return "", &reddit.StatusError{URL: url, Code: http.StatusServiceUnavailable}
		}
		return expandThread, nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.OpenThread("/r/go/comments/p1/post/")
	before := waitFor(t, o.Thread(), isSuccess[model.Thread])

	o.Expand("m1")
	st := waitFor(t, o.Thread(), isError[model.Thread])
	assert.Equal(t, NetworkUnreachable, st.Kind)

	stale, ok := o.Thread().Stale()
	require.True(t, ok)
	assert.Equal(t, ids(before.Data.Comments), ids(stale.Comments))
	assert.Equal(t, []string{"c1a", "m1"}, childIDs(stale.Comments[0]))
}

func TestOrchestratorDebounceSameTerm(t *testing.T) {
	ft := &fakeTransport{route: func(_ context.Context, url string) (string, error) {
		return listingJSON("pie"), nil
	}}
	o := New(ft, testResolver(), Options{Debounce: 50 * time.Millisecond})
	startOrchestrator(t, o)

	for i := 0; i < 3; i++ {
		o.SetLocation(model.Location{Path: "/r/test", SearchTerm: "pie"})
	}

	st := waitFor(t, o.Posts(), isSuccess[[]model.Post])
	assert.Equal(t, uint64(3), st.RequestID)
	assert.Equal(t, []string{testHost + "/r/test.json?q=pie"}, ft.Calls())
}

const threadB = `[{"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"b","permalink":"/r/go/comments/b/x/"}}]}},{"kind":"Listing","data":{"children":[]}}]`

func TestOrchestratorExpandIgnoredAfterLeavingThread(t *testing.T) {
	var bCalls atomic.Int32
	ft := &fakeTransport{route: func(_ context.Context, u string) (string, error) {
		switch {
		case strings.Contains(u, "/api/morechildren"):
			return moreChildrenResponse, nil
		case strings.Contains(u, "/comments/b/"):
			if bCalls.Add(1) == 1 {
				return "", &reddit.StatusError{URL: u, Code: http.StatusServiceUnavailable}
			}
			return threadB, nil
		default:
			return expandThread, nil
		}
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.OpenThread("/r/go/comments/p1/post/")
	waitFor(t, o.Thread(), isSuccess[model.Thread])

	o.OpenThread("/r/go/comments/b/x/")
	failed := waitFor(t, o.Thread(), isError[model.Thread])

	// m1 only exists in the p1 tree still held as stale data.
	o.Expand("m1")
	o.Retry()
	st := waitFor(t, o.Thread(), func(s State[model.Thread]) bool {
		return s.Status == StatusSuccess && s.RequestID > failed.RequestID
	})
	assert.Equal(t, "b", st.Data.Post.ID)
	assert.Zero(t, ft.CallsMatching("/api/morechildren"))
	assert.Equal(t, 2, ft.CallsMatching("/comments/b/"))
}

const bigStubThread = `[
  {"kind":"Listing","data":{"children":[{"kind":"t3","data":{"id":"p1","permalink":"/r/go/comments/p1/post/"}}]}},
  {"kind":"Listing","data":{"children":[
    {"kind":"t1","data":{"id":"c1","replies":{"kind":"Listing","data":{"children":[
      {"kind":"more","data":{"id":"mbig","parent_id":"t1_c1","children":[%s],"count":150}}
    ]}}}}
  ]}}
]`

func TestOrchestratorExpandBatchesLargeStub(t *testing.T) {
	quoted := make([]string, 150)
	for i := range quoted {
		quoted[i] = fmt.Sprintf(`"k%03d"`, i)
	}
	ft := &fakeTransport{route: func(_ context.Context, u string) (string, error) {
		if strings.Contains(u, "/api/morechildren") {
			return `{"json":{"errors":[],"data":{"things":[{"kind":"t1","data":{"id":"k000","parent_id":"t1_c1"}}]}}}`, nil
		}
		return fmt.Sprintf(bigStubThread, strings.Join(quoted, ",")), nil
	}}
	o := New(ft, testResolver(), Options{})
	startOrchestrator(t, o)

	o.OpenThread("/r/go/comments/p1/post/")
	before := waitFor(t, o.Thread(), isSuccess[model.Thread])

	o.Expand("mbig")
	st := waitFor(t, o.Thread(), func(s State[model.Thread]) bool {
		return s.Status == StatusSuccess && s.RequestID > before.RequestID
	})

	calls := ft.Calls()
	require.Len(t, calls, 2)
	parsed, err := url.Parse(calls[1])
	require.NoError(t, err)
	sent := strings.Split(parsed.Query().Get("children"), ",")
	require.Len(t, sent, maxMoreChildren)
	assert.Equal(t, "k000", sent[0])
	assert.Equal(t, "k099", sent[99])

	assert.Equal(t, []string{"k000", "mbig+"}, childIDs(st.Data.Comments[0]))
	rest := st.Data.Comments[0].(*model.Comment).Children[1].(*model.MoreStub)
	assert.Equal(t, "t1_c1", rest.ParentID)
	assert.Equal(t, 50, rest.Count)
	require.Len(t, rest.ChildIDs, 50)
	assert.Equal(t, "k100", rest.ChildIDs[0])
	assert.Equal(t, "k149", rest.ChildIDs[49])
}

func TestOrchestratorOpenThreadSupersedesExpansion(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	ft := &fakeTransport{route: func(_ context.Context, u string) (string, error) {
		switch {
		case strings.Contains(u, "/api/morechildren"):
			close(started)
			<-gate
			return moreChildrenResponse, nil
		case strings.Contains(u, "/comments/b/"):
			return threadB, nil
		default:
			return expandThread, nil
		}
	}}
	m := metrics.NewFetch(prometheus.NewRegistry())
	o := New(ft, testResolver(), Options{Metrics: m})
	startOrchestrator(t, o)

	o.OpenThread("/r/go/comments/p1/post/")
	waitFor(t, o.Thread(), isSuccess[model.Thread])

	o.Expand("m1")
	<-started
	o.OpenThread("/r/go/comments/b/x/")
	st := waitFor(t, o.Thread(), func(s State[model.Thread]) bool {
		return s.Status == StatusSuccess && s.Data.Post.ID == "b"
	})

	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Superseded.WithLabelValues(ChannelThread)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	final := o.Thread().State()
	assert.Equal(t, StatusSuccess, final.Status)
	assert.Equal(t, "b", final.Data.Post.ID)
	assert.Equal(t, st.RequestID, final.RequestID)
}

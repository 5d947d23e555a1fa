package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"threadscope/internal/model"
	"threadscope/internal/reddit"
	"threadscope/internal/resolve"
)

const testHost = "https://reddit.test"

// fakeTransport answers from a route function and records every URL.
type fakeTransport struct {
	mu    sync.Mutex
	calls []string
	route func(ctx context.Context, url string) (string, error)
}

func (f *fakeTransport) FetchJSON(ctx context.Context, url string) (reddit.Doc, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	body, err := f.route(ctx, url)
	if err != nil {
		return reddit.Doc{}, err
	}
	return reddit.ParseDocBytes([]byte(body))
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) CallsMatching(substr string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func testResolver() resolve.Resolver { return resolve.New(testHost, "") }

func listingJSON(ids ...string) string {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, fmt.Sprintf(`{"kind":"t3","data":{"id":%q,"title":"post %s","permalink":"/r/go/comments/%s/x/"}}`, id, id, id))
	}
	return `{"kind":"Listing","data":{"children":[` + strings.Join(items, ",") + `]}}`
}

func postIDs(posts []model.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

// startOrchestrator runs o until the test ends.
func startOrchestrator(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor[T any](t *testing.T, ch *Channel[T], cond func(State[T]) bool) State[T] {
	t.Helper()
	var last State[T]
	require.Eventually(t, func() bool {
		last = ch.State()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, "channel %s never reached the expected state", ch.Name())
	return last
}

func isSuccess[T any](s State[T]) bool { return s.Status == StatusSuccess }
func isError[T any](s State[T]) bool   { return s.Status == StatusError }

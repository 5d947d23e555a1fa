package reddit

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetchJSON(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok.json":
			w.Write([]byte(`{"data":{"children":[{"kind":"t3","data":{"id":"a"}}]}}`))
		case "/throttled.json":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/r/nope.json":
			http.Redirect(w, r, "/subreddits/search.json?q=nope", http.StatusFound)
		case "/garbage.json":
			w.Write([]byte(`<html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Options{UserAgent: "test-agent", Timeout: 2 * time.Second})
	ctx := context.Background()

	doc, err := c.FetchJSON(ctx, srv.URL+"/ok.json")
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Get("data", "children").Index(0).Get("data", "id").String())
	assert.Equal(t, "test-agent", gotUA)

	_, err = c.FetchJSON(ctx, srv.URL+"/throttled.json")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)

	_, err = c.FetchJSON(ctx, srv.URL+"/r/nope.json")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusFound, se.Code)

	_, err = c.FetchJSON(ctx, srv.URL+"/missing.json")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)

	_, err = c.FetchJSON(ctx, srv.URL+"/garbage.json")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.FetchJSON(ctx, srv.URL+"/slow.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDocAccessors(t *testing.T) {
	d := mustDoc(t, `{"a":{"b":[1,"two",true,null]},"n":"3.5"}`)
	assert.Equal(t, int64(1), d.Get("a", "b").Index(0).Int())
	assert.Equal(t, "two", d.Get("a", "b").Index(1).String())
	assert.True(t, d.Get("a", "b").Index(2).Bool())
	assert.False(t, d.Get("a", "b").Index(3).Exists())
	assert.False(t, d.Get("a", "b").Index(9).Exists())
	assert.Equal(t, []string{"two"}, d.Get("a", "b").Strings())
	assert.Equal(t, 3.5, d.Get("n").Float())
	assert.Equal(t, 4, d.Get("a", "b").Len())
	assert.False(t, d.Get("a", "b", "c").Exists())
	assert.Equal(t, "", d.Get("missing").String())
}

func TestDocIntSaturates(t *testing.T) {
	d := mustDoc(t, `{"big":1e300,"small":-1e300,"edge":9223372036854775807,"s":"42.9"}`)
	assert.Equal(t, int64(math.MaxInt64), d.Get("big").Int())
	assert.Equal(t, int64(math.MinInt64), d.Get("small").Int())
	assert.Equal(t, int64(math.MaxInt64), d.Get("edge").Int())
	assert.Equal(t, int64(42), d.Get("s").Int())
}

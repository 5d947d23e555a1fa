// Package resolve turns navigation locations into fetch targets.
// Everything here is pure: no network access and no shared state.
package resolve

import (
	"net/url"
	"strings"

	"threadscope/internal/model"
)

const (
	DefaultBaseHost      = "https://www.reddit.com"
	DefaultListingSuffix = ".json"
)

// Target is a resolved fetch. CacheKey is the URL itself.
type Target struct {
	URL      string
	CacheKey string
}

// Resolver builds URLs against a base host.
type Resolver struct {
	BaseHost      string
	ListingSuffix string
}

// New returns a Resolver, filling empty settings with the defaults.
func New(baseHost, listingSuffix string) Resolver {
	if strings.TrimSpace(baseHost) == "" {
		baseHost = DefaultBaseHost
	}
	if listingSuffix == "" {
		listingSuffix = DefaultListingSuffix
	}
	return Resolver{
		BaseHost:      strings.TrimRight(strings.TrimSpace(baseHost), "/"),
		ListingSuffix: listingSuffix,
	}
}

// Resolve maps a location to its listing URL.
func (r Resolver) Resolve(loc model.Location) Target {
	p := CanonicalPath(loc.Path)
	if loc.Mode != model.ListingDefault {
		p += "/" + url.PathEscape(string(loc.Mode))
	}
	if p == "" {
		p = "/"
	}
	u := r.host() + p + r.ListingSuffix
	if term := strings.TrimSpace(loc.SearchTerm); term != "" {
		u += "?" + url.Values{"q": {term}}.Encode()
	}
	return target(u)
}

// Thread resolves a post permalink (e.g. /r/x/comments/abc/title/) to its comments document.
func (r Resolver) Thread(permalink string) Target {
	return target(r.host() + CanonicalPath(permalink) + r.ListingSuffix)
}

// ContinueThread resolves the page that roots a thread at one comment.
func (r Resolver) ContinueThread(permalink, commentID string) Target {
	return target(r.host() + CanonicalPath(permalink) + "/" + url.PathEscape(commentID) + r.ListingSuffix)
}

// MoreChildren resolves the endpoint that expands a continuation stub.
// linkID is the post id without the t3_ prefix.
func (r Resolver) MoreChildren(linkID string, childIDs []string) Target {
	q := url.Values{
		"api_type": {"json"},
		"link_id":  {"t3_" + strings.TrimPrefix(linkID, "t3_")},
		"children": {strings.Join(childIDs, ",")},
	}
	return target(r.host() + "/api/morechildren" + r.ListingSuffix + "?" + q.Encode())
}

// Categories resolves the sidebar subreddit list.
func (r Resolver) Categories() Target {
	return target(r.host() + "/subreddits" + r.ListingSuffix)
}

// Permalink turns a site-relative permalink into an absolute URL.
func (r Resolver) Permalink(p string) string {
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return r.host() + "/" + strings.TrimLeft(p, "/")
}

// CanonicalPath trims whitespace, ensures a leading slash and removes
// trailing slashes. The root path becomes "".
func CanonicalPath(p string) string {
	p = strings.TrimSpace(p)
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func (r Resolver) host() string {
	if r.BaseHost == "" {
		return DefaultBaseHost
	}
	return r.BaseHost
}

func target(u string) Target {
	return Target{URL: u, CacheKey: u}
}

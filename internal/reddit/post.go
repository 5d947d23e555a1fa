package reddit

import (
	"html"
	"strings"

	"threadscope/internal/model"
	"threadscope/internal/resolve"
)

// Thing kinds used by Reddit's listing envelopes.
const (
	kindComment   = "t1"
	kindPost      = "t3"
	kindSubreddit = "t5"
	kindMore      = "more"
	kindListing   = "Listing"
)

// epochMillisThreshold is the largest 10-digit value; anything above is milliseconds.
const epochMillisThreshold = 9_999_999_999

// Normalizer converts raw Reddit documents into model entities.
type Normalizer struct {
	Resolver resolve.Resolver
}

// NewNormalizer returns a Normalizer building absolute links against r's host.
func NewNormalizer(r resolve.Resolver) Normalizer {
	return Normalizer{Resolver: r}
}

// NormalizePost maps one raw post record. It accepts either the record itself
// or its {kind, data} wrapper and never fails: missing fields become zero values.
func (n Normalizer) NormalizePost(d Doc) model.Post {
	d = unwrap(d)

	id := d.Get("id").String()
	if id == "" {
		id = strings.TrimPrefix(d.Get("name").String(), kindPost+"_")
	}
	subreddit := d.Get("subreddit_name_prefixed").String()
	if subreddit == "" {
		if s := d.Get("subreddit").String(); s != "" {
			subreddit = "r/" + s
		}
	}
	permalink := d.Get("permalink").String()
	external := strings.TrimSpace(d.Get("url").String())

	return model.Post{
		ID:           id,
		Author:       d.Get("author").String(),
		Title:        html.UnescapeString(d.Get("title").String()),
		Subreddit:    subreddit,
		PermalinkURL: n.Resolver.Permalink(permalink),
		ExternalURL:  external,
		BodyMarkdown: d.Get("selftext").String(),
		CreatedAt:    createdAt(d),
		NumComments:  int(d.Get("num_comments").Int()),
		Score:        postScore(d),
		Media:        selectMedia(d, external, permalink),
		ThumbnailURL: thumbnail(d.Get("thumbnail").String()),
	}
}

// NormalizeListing maps a listing document. The only required shape is
// data.children being an array; entries that are not posts are skipped and
// later duplicates of an id are dropped.
func (n Normalizer) NormalizeListing(d Doc) ([]model.Post, error) {
	children := d.Get("data", "children")
	if !children.IsArray() {
		return nil, malformed("listing without data.children")
	}
	seen := make(map[string]struct{}, children.Len())
	posts := make([]model.Post, 0, children.Len())
	for _, ch := range children.Items() {
		if k := ch.Get("kind").String(); k != "" && k != kindPost {
			continue
		}
		p := n.NormalizePost(ch)
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		posts = append(posts, p)
	}
	return posts, nil
}

// selectMedia picks the first matching variant: hosted video, hosted image,
// external link, none.
func selectMedia(d Doc, external, permalink string) model.Media {
	for _, key := range []string{"media", "secure_media"} {
		v := d.Get(key, "reddit_video")
		dash := v.Get("dash_url").String()
		fallback := v.Get("fallback_url").String()
		if dash != "" || fallback != "" {
			return model.Media{
				Kind:        model.MediaVideo,
				DashURL:     html.UnescapeString(dash),
				FallbackURL: html.UnescapeString(fallback),
			}
		}
	}

	hint := d.Get("post_hint").String()
	if hint == "image" {
		src := d.Get("preview", "images").Index(0).Get("source")
		w, h := int(src.Get("width").Int()), int(src.Get("height").Int())
		u := external
		if u == "" {
			u = html.UnescapeString(src.Get("url").String())
		}
		if w > 0 && h > 0 && u != "" {
			return model.Media{Kind: model.MediaImage, URL: u, Width: w, Height: h}
		}
	}

	if external != "" && isExternalLink(d, hint, external, permalink) {
		return model.Media{Kind: model.MediaLink, URL: external}
	}
	return model.Media{Kind: model.MediaNone}
}

func isExternalLink(d Doc, hint, external, permalink string) bool {
	switch hint {
	case "link", "rich:video":
		return true
	case "":
		if d.Get("is_self").Bool() {
			return false
		}
		return permalink == "" || !strings.Contains(external, strings.TrimRight(permalink, "/"))
	}
	return false
}

func postScore(d Doc) int {
	ups := d.Get("ups")
	if !ups.Exists() {
		ups = d.Get("score")
	}
	s := ups.Int() - d.Get("downs").Int()
	if s < 0 {
		return 0
	}
	return int(s)
}

func createdAt(d Doc) int64 {
	v := d.Get("created_utc")
	if !v.Exists() {
		v = d.Get("created")
	}
	return epochSeconds(v.Float())
}

// epochSeconds accepts seconds or milliseconds and returns seconds.
func epochSeconds(f float64) int64 {
	if f > epochMillisThreshold {
		f /= 1000
	}
	if f < 0 {
		return 0
	}
	return int64(f)
}

// thumbnail drops Reddit's placeholder values (self, default, nsfw, spoiler, image).
func thumbnail(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
		return html.UnescapeString(s)
	}
	return ""
}

// unwrap returns the data object of a {kind, data} thing, or d unchanged.
func unwrap(d Doc) Doc {
	if d.Get("kind").Exists() && d.Get("data").IsObject() {
		return d.Get("data")
	}
	return d
}

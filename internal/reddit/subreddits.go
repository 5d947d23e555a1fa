package reddit

import (
	"html"
	"strings"

	"threadscope/internal/model"
	"threadscope/internal/resolve"
)

// NormalizeCategories maps the /subreddits listing into sidebar categories.
func (n Normalizer) NormalizeCategories(d Doc) ([]model.Category, error) {
	children := d.Get("data", "children")
	if !children.IsArray() {
		return nil, malformed("subreddit listing without data.children")
	}
	out := make([]model.Category, 0, children.Len())
	for _, ch := range children.Items() {
		if k := ch.Get("kind").String(); k != "" && k != kindSubreddit {
			continue
		}
		data := unwrap(ch)
		c := model.Category{
			ID:          data.Get("id").String(),
			DisplayName: data.Get("display_name").String(),
			IconURL:     categoryIcon(data),
			Path:        resolve.CanonicalPath(data.Get("url").String()),
		}
		if c.Path == "" && c.DisplayName != "" {
			c.Path = "/r/" + c.DisplayName
		}
		if c.ID == "" || c.Path == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// categoryIcon prefers icon_img; newer communities only set community_icon,
// which comes HTML-escaped.
func categoryIcon(d Doc) string {
	for _, key := range []string{"icon_img", "community_icon"} {
		if s := strings.TrimSpace(d.Get(key).String()); s != "" {
			return html.UnescapeString(s)
		}
	}
	return ""
}

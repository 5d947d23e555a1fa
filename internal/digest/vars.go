package digest

import (
	"strings"
	"time"
)

// ExpandVars performs simple placeholder substitutions for output paths and
// titles.
//
// Supported variables:
// - {.CurrentDate} => formatted as YYYY-MM-DD (UTC)
// - {.PostID} => the post id
func ExpandVars(s, postID string, now time.Time) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	r := strings.NewReplacer(
		"{.CurrentDate}", now.UTC().Format("2006-01-02"),
		"{.PostID}", postID,
	)
	return r.Replace(s)
}

package model

// MediaKind tags which variant of Media is populated.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaImage
	MediaVideo
	MediaLink
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaLink:
		return "link"
	default:
		return "none"
	}
}

// Media is the display variant of a post's attached content.
// Image uses URL/Width/Height, Video uses DashURL/FallbackURL, Link uses URL.
type Media struct {
	Kind        MediaKind `json:"kind"`
	URL         string    `json:"url,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	DashURL     string    `json:"dash_url,omitempty"`
	FallbackURL string    `json:"fallback_url,omitempty"`
}

// Post is a normalized listing entry.
type Post struct {
	ID           string `json:"id"`
	Author       string `json:"author"`
	Title        string `json:"title"`
	Subreddit    string `json:"subreddit"`
	PermalinkURL string `json:"permalink_url"`
	ExternalURL  string `json:"external_url"`
	BodyMarkdown string `json:"body_markdown,omitempty"`
	CreatedAt    int64  `json:"created_at"` // epoch seconds
	NumComments  int    `json:"num_comments"`
	Score        int    `json:"score"`
	Media        Media  `json:"media"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

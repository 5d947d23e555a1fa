package model

import (
	"fmt"
	"strings"
)

// ListingMode is the remote sort applied to a content path.
type ListingMode string

const (
	ListingDefault       ListingMode = ""
	ListingHot           ListingMode = "hot"
	ListingNew           ListingMode = "new"
	ListingTop           ListingMode = "top"
	ListingRising        ListingMode = "rising"
	ListingControversial ListingMode = "controversial"
	ListingBest          ListingMode = "best"
)

// ParseListingMode accepts the known modes case-insensitively; empty is ListingDefault.
func ParseListingMode(s string) (ListingMode, error) {
	m := ListingMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ListingDefault, ListingHot, ListingNew, ListingTop, ListingRising, ListingControversial, ListingBest:
		return m, nil
	}
	return ListingDefault, fmt.Errorf("unknown listing mode %q", s)
}

// Location identifies what the post list shows. Comparable with ==.
type Location struct {
	Path       string      `json:"path"`
	SearchTerm string      `json:"search_term,omitempty"`
	Mode       ListingMode `json:"mode,omitempty"`
}

// Category is a sidebar entry (a subreddit).
type Category struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IconURL     string `json:"icon_url,omitempty"`
	Path        string `json:"path"`
}

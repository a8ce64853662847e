package models

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// FeedItem is a post hydrated with its comment forest.
type FeedItem struct {
	Post
	CreatedAgo string         `json:"created_ago"`
	Comments   []*CommentNode `json:"comments"`
}

// TimeAgo renders a coarse relative age. A zero time means the server has not stamped it yet.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "Just now"
	}
	diff := now.Sub(t)
	minutes := int(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd ago", days)
	case hours > 0:
		return fmt.Sprintf("%dh ago", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm ago", minutes)
	}
	return "Just now"
}

var extPattern = regexp.MustCompile(`\.[a-zA-Z0-9]{1,6}$`)

// DownloadName picks the filename offered when a post's object is downloaded.
func DownloadName(p *Post) string {
	name := p.FileName
	if name == "" {
		name = p.StorageKey
	}
	if name == "" {
		name = "download"
	}

	if p.Format != "" && !strings.HasSuffix(strings.ToLower(name), "."+strings.ToLower(p.Format)) {
		return name + "." + p.Format
	}
	if !extPattern.MatchString(name) {
		raw := strings.SplitN(p.URL, "?", 2)[0]
		if base := path.Base(raw); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return name
}

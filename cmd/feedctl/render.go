package main

import (
	"fmt"
	"io"
	"strings"

	"snapfeed/internal/models"
)

// renderFeed prints each post followed by its comment thread.
func renderFeed(w io.Writer, items []*models.FeedItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No posts yet")
		return
	}
	for _, item := range items {
		owner := item.OwnerName
		if owner == "" {
			owner = item.OwnerID
		}
		fmt.Fprintf(w, "%s  %s · %s\n", item.ID, owner, item.CreatedAgo)
		if !item.IsText() {
			fmt.Fprintf(w, "  [%s] %s\n", item.ResourceKind, item.URL)
		}
		if item.Caption != "" {
			fmt.Fprintf(w, "  %s\n", item.Caption)
		}
		renderComments(w, item.Comments, 2)
		fmt.Fprintln(w)
	}
}

func renderComments(w io.Writer, nodes []*models.CommentNode, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, n := range nodes {
		author := n.AuthorName
		if author == "" {
			author = n.AuthorID
		}
		fmt.Fprintf(w, "%s> %s: %s\n", pad, author, n.Text)
		renderComments(w, n.Replies, indent+2)
	}
}

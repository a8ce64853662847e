// Package thread assembles flat comment records into reply trees.
package thread

import "snapfeed/internal/models"

// BuildForest groups comments under their parents and returns the root nodes.
//
// Input must already be ordered oldest first; roots and every reply list keep
// that order. A comment whose parent is not in the input is dropped along with
// its own replies. Nesting depth is not limited here.
func BuildForest(comments []*models.Comment) []*models.CommentNode {
	index := make(map[string]*models.CommentNode, len(comments))
	nodes := make([]*models.CommentNode, 0, len(comments))

	for _, c := range comments {
		if c == nil {
			continue
		}
		if _, dup := index[c.ID]; dup {
			continue
		}
		node := &models.CommentNode{Comment: *c, Replies: []*models.CommentNode{}}
		index[c.ID] = node
		nodes = append(nodes, node)
	}

	roots := make([]*models.CommentNode, 0)
	for _, node := range nodes {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parentID := *node.ParentID
		if parentID == node.ID {
			continue
		}
		if parent, ok := index[parentID]; ok {
			parent.Replies = append(parent.Replies, node)
		}
	}

	return roots
}

// Count returns the number of nodes reachable from roots.
func Count(roots []*models.CommentNode) int {
	n := 0
	for _, r := range roots {
		n += 1 + Count(r.Replies)
	}
	return n
}

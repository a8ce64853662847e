package thread

import (
	"fmt"
	"testing"
	"time"

	"snapfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func comment(id string, parent *string, minute int) *models.Comment {
	return &models.Comment{
		ID:        id,
		PostID:    "p1",
		Text:      "text " + id,
		ParentID:  parent,
		CreatedAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(nodes []*models.CommentNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func collect(nodes []*models.CommentNode, into map[string]int) {
	for _, n := range nodes {
		into[n.ID]++
		collect(n.Replies, into)
	}
}

func TestBuildForest_AllParentsResolve(t *testing.T) {
	t.Parallel()

	input := []*models.Comment{
		comment("a", nil, 0),
		comment("b", nil, 1),
		comment("a1", ptr("a"), 2),
		comment("b1", ptr("b"), 3),
		comment("a2", ptr("a"), 4),
		comment("c", nil, 5),
	}

	roots := BuildForest(input)

	assert.Equal(t, []string{"a", "b", "c"}, ids(roots))
	assert.Equal(t, []string{"a1", "a2"}, ids(roots[0].Replies))
	assert.Equal(t, []string{"b1"}, ids(roots[1].Replies))
	assert.Empty(t, roots[2].Replies)

	seen := map[string]int{}
	collect(roots, seen)
	require.Len(t, seen, len(input))
	for _, c := range input {
		assert.Equal(t, 1, seen[c.ID], "comment %s must appear exactly once", c.ID)
	}
	assert.Equal(t, len(input), Count(roots))
}

func TestBuildForest_DropsDangling(t *testing.T) {
	t.Parallel()

	input := []*models.Comment{
		comment("a", nil, 0),
		comment("orphan", ptr("deleted"), 1),
		comment("orphan-child", ptr("orphan"), 2),
		comment("self", ptr("self"), 3),
		comment("a1", ptr("a"), 4),
	}

	roots := BuildForest(input)

	seen := map[string]int{}
	collect(roots, seen)
	assert.Equal(t, map[string]int{"a": 1, "a1": 1}, seen)
	assert.Equal(t, []string{"a"}, ids(roots))
}

func TestBuildForest_PreservesOrder(t *testing.T) {
	t.Parallel()

	var input []*models.Comment
	for i := 0; i < 20; i++ {
		if i%4 == 0 {
			input = append(input, comment(fmt.Sprintf("r%d", i), nil, i))
			continue
		}
		parent := fmt.Sprintf("r%d", i-i%4)
		input = append(input, comment(fmt.Sprintf("c%d", i), ptr(parent), i))
	}

	roots := BuildForest(input)

	var check func([]*models.CommentNode)
	check = func(nodes []*models.CommentNode) {
		for i := 1; i < len(nodes); i++ {
			assert.False(t, nodes[i].CreatedAt.Before(nodes[i-1].CreatedAt),
				"%s is older than its predecessor %s", nodes[i].ID, nodes[i-1].ID)
		}
		for _, n := range nodes {
			check(n.Replies)
		}
	}
	check(roots)
	assert.Len(t, roots, 5)
}

func TestBuildForest_Idempotent(t *testing.T) {
	t.Parallel()

	input := []*models.Comment{
		comment("a", nil, 0),
		comment("a1", ptr("a"), 1),
		comment("x", ptr("missing"), 2),
	}

	first := BuildForest(input)
	second := BuildForest(input)

	assert.Equal(t, first, second)
	first[0].Replies = nil
	assert.Len(t, second[0].Replies, 1, "rebuilds must not share nodes")
	assert.Nil(t, input[0].ParentID)
}

func TestBuildForest_DepthAgnostic(t *testing.T) {
	t.Parallel()

	input := []*models.Comment{
		comment("a", nil, 0),
		comment("a1", ptr("a"), 1),
		comment("a1x", ptr("a1"), 2),
		comment("a1xy", ptr("a1x"), 3),
	}

	roots := BuildForest(input)

	require.Len(t, roots, 1)
	require.Len(t, roots[0].Replies, 1)
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, "a1xy", roots[0].Replies[0].Replies[0].Replies[0].ID)
}

func TestBuildForest_EdgeInputs(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		roots := BuildForest(nil)
		assert.NotNil(t, roots)
		assert.Empty(t, roots)
	})

	t.Run("duplicate ids keep the first", func(t *testing.T) {
		t.Parallel()
		first := comment("a", nil, 0)
		dup := comment("a", nil, 1)
		dup.Text = "duplicate"
		roots := BuildForest([]*models.Comment{first, nil, dup})
		require.Len(t, roots, 1)
		assert.Equal(t, "text a", roots[0].Text)
	})
}

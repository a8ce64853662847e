// Package search indexes post captions and answers caption queries.
package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"snapfeed/internal/middleware"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxPosts = "snapfeed_posts"

// Meili indexes posts in Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the posts index.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		middleware.Logger.Warn("Meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxPosts,
		PrimaryKey: "id",
	}); err != nil {
		middleware.Logger.Debug("Create search index (may already exist)", "index", idxPosts, "error", err)
	}

	index := m.client.Index(idxPosts)
	searchable := []string{"caption", "fileName", "ownerName"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		middleware.Logger.Warn("Update searchable attributes failed", "index", idxPosts, "error", err)
	}
	sortable := []string{"createdAt"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		middleware.Logger.Warn("Update sortable attributes failed", "index", idxPosts, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				middleware.Logger.Info("Meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexPost adds or replaces one post document.
func (m *Meili) IndexPost(doc PostRecord) error {
	_, err := m.client.Index(idxPosts).AddDocuments([]PostRecord{doc}, nil)
	return err
}

// IndexPosts bulk-indexes posts.
func (m *Meili) IndexPosts(docs []PostRecord) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPosts).AddDocuments(docs, nil)
	return err
}

// Search returns matching post IDs, newest first.
func (m *Meili) Search(query string, limit, offset int) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(idxPosts).Search(query, &meili.SearchRequest{
		Limit:                int64(limit),
		Offset:               int64(offset),
		Sort:                 []string{"createdAt:desc"},
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if id := decodeString(hit, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

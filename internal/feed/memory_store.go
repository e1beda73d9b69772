package feed

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/clipstream/backend/internal/models"
)

// MemoryStore implements Store over an in-memory slice for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	videos []models.Video
}

// NewMemoryStore returns a store seeded with the provided videos.
func NewMemoryStore(videos ...models.Video) *MemoryStore {
	return &MemoryStore{videos: slices.Clone(videos)}
}

// Add stores another video.
func (m *MemoryStore) Add(v models.Video) {
	m.mu.Lock()
	m.videos = append(m.videos, v)
	m.mu.Unlock()
}

// ListEligible applies the same filters and ordering as the SQL store.
func (m *MemoryStore) ListEligible(_ context.Context, q Query) ([]models.Video, error) {
	var authors map[string]struct{}
	if q.AuthorIDs != nil {
		authors = make(map[string]struct{}, len(q.AuthorIDs))
		for _, id := range q.AuthorIDs {
			authors[id] = struct{}{}
		}
	}

	search := strings.ToLower(q.Search)

	m.mu.RLock()
	var out []models.Video
	for _, v := range m.videos {
		if !v.Eligible() {
			continue
		}
		if authors != nil {
			if _, ok := authors[v.UserID]; !ok {
				continue
			}
		}
		if !q.Since.IsZero() && v.CreatedAt.Before(q.Since) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(v.Title), search) && !strings.Contains(strings.ToLower(v.Description), search) {
			continue
		}
		if q.Hashtag != "" && !slices.Contains(v.Hashtags, q.Hashtag) {
			continue
		}
		if q.After != nil && q.Ranking.Compare(q.After.Key, q.Ranking.KeyOf(v)) >= 0 {
			continue
		}
		out = append(out, v)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Video) int {
		return q.Ranking.Compare(q.Ranking.KeyOf(a), q.Ranking.KeyOf(b))
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// FollowSet implements FollowGraph from a static follower -> following map.
type FollowSet map[string][]string

// FollowingIDs returns up to limit creators followed by userID.
func (f FollowSet) FollowingIDs(_ context.Context, userID string, limit int) ([]string, error) {
	ids := f[userID]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return slices.Clone(ids), nil
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/videos"
)

type inMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User

	videos  *inMemoryVideoStore
	follows *inMemoryFollowStore
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) Update(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && (existing.Email == user.Email || existing.Username == user.Username) {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) Search(_ context.Context, term string, limit, offset int) ([]models.User, error) {
	term = strings.ToLower(term)
	s.mu.Lock()
	var found []models.User
	for _, user := range s.users {
		if !user.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(user.Username), term) || strings.Contains(strings.ToLower(user.FirstName), term) {
			found = append(found, user)
		}
	}
	s.mu.Unlock()
	sort.Slice(found, func(i, j int) bool { return found[i].Username < found[j].Username })
	return window(found, limit, offset), nil
}

func (s *inMemoryUserStore) Stats(_ context.Context, id string) (models.UserStats, error) {
	var stats models.UserStats
	if s.follows != nil {
		stats.FollowersCount, stats.FollowingCount = s.follows.counts(id)
	}
	if s.videos != nil {
		stats.VideosCount, stats.TotalViews, stats.TotalLikes = s.videos.totals(id)
	}
	return stats, nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

type inMemoryVideoStore struct {
	mu     sync.Mutex
	nextID int64
	videos map[int64]models.Video
	likes  map[string]bool
	failed []int64
}

func newInMemoryVideoStore(seed ...models.Video) *inMemoryVideoStore {
	s := &inMemoryVideoStore{videos: make(map[int64]models.Video), likes: make(map[string]bool)}
	for _, v := range seed {
		s.videos[v.ID] = v
		s.nextID = max(s.nextID, v.ID)
	}
	return s
}

func likeKey(userID string, videoID int64) string {
	return fmt.Sprintf("%s:%d", userID, videoID)
}

func (s *inMemoryVideoStore) Create(_ context.Context, video models.Video) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	video.ID = s.nextID
	s.videos[video.ID] = video
	return video.ID, nil
}

func (s *inMemoryVideoStore) FindByID(_ context.Context, id int64) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok || video.DeletedAt != nil {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *inMemoryVideoStore) IncrementViews(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok || !video.Eligible() {
		return repositories.ErrNotFound
	}
	video.ViewsCount++
	s.videos[id] = video
	return nil
}

func (s *inMemoryVideoStore) Like(_ context.Context, userID string, videoID int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[videoID]
	if !ok || video.DeletedAt != nil {
		return repositories.ErrNotFound
	}
	if s.likes[likeKey(userID, videoID)] {
		return repositories.ErrConflict
	}
	s.likes[likeKey(userID, videoID)] = true
	video.LikesCount++
	s.videos[videoID] = video
	return nil
}

func (s *inMemoryVideoStore) Unlike(_ context.Context, userID string, videoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.likes[likeKey(userID, videoID)] {
		return repositories.ErrNotFound
	}
	delete(s.likes, likeKey(userID, videoID))
	video := s.videos[videoID]
	video.LikesCount = max(video.LikesCount-1, 0)
	s.videos[videoID] = video
	return nil
}

func (s *inMemoryVideoStore) Update(_ context.Context, video models.Video, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.videos[video.ID]
	if !ok || stored.UserID != video.UserID || stored.DeletedAt != nil {
		return repositories.ErrNotFound
	}
	stored.Title = video.Title
	stored.Description = video.Description
	stored.IsPublic = video.IsPublic
	stored.Hashtags = video.Hashtags
	s.videos[video.ID] = stored
	return nil
}

func (s *inMemoryVideoStore) totals(userID string) (count, views, likes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.videos {
		if v.UserID == userID && v.Eligible() {
			count++
			views += v.ViewsCount
			likes += v.LikesCount
		}
	}
	return count, views, likes
}

// Trending and Search derive hashtag usage from the stored videos.
func (s *inMemoryVideoStore) Trending(_ context.Context, since time.Time, limit int) ([]models.Hashtag, error) {
	tags := s.hashtags(func(tag models.Hashtag) bool { return !tag.LastUsedAt.Before(since) })
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].UsageCount != tags[j].UsageCount {
			return tags[i].UsageCount > tags[j].UsageCount
		}
		if !tags[i].LastUsedAt.Equal(tags[j].LastUsedAt) {
			return tags[i].LastUsedAt.After(tags[j].LastUsedAt)
		}
		return tags[i].Name < tags[j].Name
	})
	return window(tags, limit, 0), nil
}

func (s *inMemoryVideoStore) Search(_ context.Context, term string, limit int) ([]models.Hashtag, error) {
	tags := s.hashtags(func(tag models.Hashtag) bool { return strings.Contains(tag.Name, term) })
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].UsageCount != tags[j].UsageCount {
			return tags[i].UsageCount > tags[j].UsageCount
		}
		return tags[i].Name < tags[j].Name
	})
	return window(tags, limit, 0), nil
}

func (s *inMemoryVideoStore) hashtags(keep func(models.Hashtag) bool) []models.Hashtag {
	s.mu.Lock()
	byName := make(map[string]models.Hashtag)
	for _, v := range s.videos {
		if v.DeletedAt != nil {
			continue
		}
		for _, name := range v.Hashtags {
			tag, ok := byName[name]
			if !ok {
				tag = models.Hashtag{Name: name, CreatedAt: v.CreatedAt}
			}
			tag.UsageCount++
			if v.CreatedAt.After(tag.LastUsedAt) {
				tag.LastUsedAt = v.CreatedAt
			}
			byName[name] = tag
		}
	}
	s.mu.Unlock()

	var out []models.Hashtag
	for _, tag := range byName {
		if keep(tag) {
			out = append(out, tag)
		}
	}
	return out
}

func (s *inMemoryVideoStore) SoftDelete(_ context.Context, id int64, ownerID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok || video.UserID != ownerID || video.DeletedAt != nil {
		return repositories.ErrNotFound
	}
	video.DeletedAt = &now
	s.videos[id] = video
	return nil
}

func (s *inMemoryVideoStore) MarkFailed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *inMemoryVideoStore) ListEligible(ctx context.Context, q feed.Query) ([]models.Video, error) {
	s.mu.Lock()
	all := make([]models.Video, 0, len(s.videos))
	for _, v := range s.videos {
		all = append(all, v)
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return feed.NewMemoryStore(all...).ListEligible(ctx, q)
}

type inMemoryFollowStore struct {
	mu    sync.Mutex
	users *inMemoryUserStore
	edges []models.Follow
}

func newInMemoryFollowStore(users *inMemoryUserStore) *inMemoryFollowStore {
	return &inMemoryFollowStore{users: users}
}

func (s *inMemoryFollowStore) Follow(_ context.Context, followerID, followingID string, now time.Time) error {
	if followerID == followingID {
		return repositories.ErrSelfFollow
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, edge := range s.edges {
		if edge.FollowerID == followerID && edge.FollowingID == followingID {
			return repositories.ErrConflict
		}
	}
	s.edges = append(s.edges, models.Follow{FollowerID: followerID, FollowingID: followingID, CreatedAt: now})
	return nil
}

func (s *inMemoryFollowStore) Unfollow(_ context.Context, followerID, followingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, edge := range s.edges {
		if edge.FollowerID == followerID && edge.FollowingID == followingID {
			s.edges = append(s.edges[:i:i], s.edges[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *inMemoryFollowStore) FollowingIDs(_ context.Context, userID string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, edge := range s.edges {
		if edge.FollowerID == userID && len(ids) < limit {
			ids = append(ids, edge.FollowingID)
		}
	}
	return ids, nil
}

func (s *inMemoryFollowStore) Followers(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error) {
	return s.connections(ctx, userID, limit, offset, func(e models.Follow) (string, string) { return e.FollowingID, e.FollowerID })
}

func (s *inMemoryFollowStore) Following(ctx context.Context, userID string, limit, offset int) ([]models.Connection, error) {
	return s.connections(ctx, userID, limit, offset, func(e models.Follow) (string, string) { return e.FollowerID, e.FollowingID })
}

// connections lists edges newest first; ends returns the matched and the listed user ids.
func (s *inMemoryFollowStore) connections(ctx context.Context, userID string, limit, offset int, ends func(models.Follow) (string, string)) ([]models.Connection, error) {
	s.mu.Lock()
	edges := append([]models.Follow(nil), s.edges...)
	s.mu.Unlock()

	var out []models.Connection
	for i := len(edges) - 1; i >= 0; i-- {
		match, listed := ends(edges[i])
		if match != userID {
			continue
		}
		user, err := s.users.FindByID(ctx, listed)
		if err != nil || !user.IsActive {
			continue
		}
		out = append(out, models.Connection{ID: user.ID, Username: user.Username, FirstName: user.FirstName, FollowedAt: edges[i].CreatedAt})
	}
	return window(out, limit, offset), nil
}

func (s *inMemoryFollowStore) counts(userID string) (followers, following int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, edge := range s.edges {
		if edge.FollowingID == userID {
			followers++
		}
		if edge.FollowerID == userID {
			following++
		}
	}
	return followers, following
}

type uploadQueueStub struct {
	mu      sync.Mutex
	uploads []videos.Upload
	err     error
}

func (q *uploadQueueStub) Enqueue(_ context.Context, upload videos.Upload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.uploads = append(q.uploads, upload)
	return nil
}

type invalidatorStub struct {
	mu    sync.Mutex
	calls int
}

func (s *invalidatorStub) Invalidate() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

type testEnv struct {
	server  *httptest.Server
	users   *inMemoryUserStore
	videos  *inMemoryVideoStore
	follows *inMemoryFollowStore
	tokens  *auth.TokenManager
	issuer  *auth.JWTIssuer
	uploads *uploadQueueStub
	cache   *invalidatorStub
}

func newTestEnv(t *testing.T, seed ...models.Video) *testEnv {
	t.Helper()

	users := newInMemoryUserStore()
	env := &testEnv{
		users:   users,
		videos:  newInMemoryVideoStore(seed...),
		follows: newInMemoryFollowStore(users),
		issuer:  auth.NewJWTIssuer("test-secret", time.Hour),
		uploads: &uploadQueueStub{},
		cache:   &invalidatorStub{},
	}
	users.videos = env.videos
	users.follows = env.follows
	env.tokens = auth.NewTokenManager(env.issuer, auth.NewInMemoryTokenStore(), time.Hour, 24*time.Hour)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:          env.users,
		Tokens:         env.tokens,
		AccessTokens:   env.issuer,
		Feeds:          feed.NewService(env.videos, env.follows),
		FeedCache:      env.cache,
		Videos:         env.videos,
		Follows:        env.follows,
		Profiles:       env.users,
		Hashtags:       env.videos,
		Uploads:        env.uploads,
		AuthLimiter:    middleware.NewKeyedRateLimiter(1000, time.Minute, time.Minute),
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	})

	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)
	return env
}

// addUser stores an active user and returns a valid access token for it.
func (e *testEnv) addUser(t *testing.T, id, username string) string {
	t.Helper()
	user := models.User{ID: id, Email: username + "@example.com", Username: username, IsActive: true}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := e.issuer.Issue(id)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// do sends a JSON request to the test server and decodes the JSON response into out
// when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

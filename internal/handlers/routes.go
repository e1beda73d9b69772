package handlers

import (
	"net/http"

	"github.com/clipstream/backend/internal/feed"
	"github.com/clipstream/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users          UserStore
	Tokens         TokenService
	AccessTokens   middleware.TokenValidator
	Feeds          feed.Reader
	FeedCache      FeedInvalidator
	Videos         VideoStore
	Follows        FollowStore
	Profiles       ProfileStore
	Hashtags       HashtagStore
	Uploads        UploadQueue
	AuthLimiter    middleware.RateLimiter
	HealthChecks   map[string]HealthCheck
	UploadDir      string
	MaxUploadBytes int64
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Checks: deps.HealthChecks}
	accounts := AuthHandler{Users: deps.Users, Tokens: deps.Tokens}
	feeds := FeedHandler{Feeds: deps.Feeds, Users: deps.Users}
	clips := VideoHandler{
		Videos:         deps.Videos,
		Uploads:        deps.Uploads,
		Cache:          deps.FeedCache,
		UploadDir:      deps.UploadDir,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	follows := FollowHandler{Follows: deps.Follows, Users: deps.Users}
	people := UserHandler{Profiles: deps.Profiles, Follows: deps.Follows}
	tags := HashtagHandler{Hashtags: deps.Hashtags}

	limited := middleware.RateLimit(deps.AuthLimiter)
	required := middleware.RequireAuth(deps.AccessTokens)
	optional := middleware.OptionalAuth(deps.AccessTokens)

	mux.HandleFunc("/healthz", health.Handle)

	mux.Handle("/api/register", limited(http.HandlerFunc(accounts.Register)))
	mux.Handle("/api/login", limited(http.HandlerFunc(accounts.Login)))
	mux.Handle("/api/refresh", limited(http.HandlerFunc(accounts.Refresh)))
	mux.Handle("/api/logout", required(http.HandlerFunc(accounts.Logout)))
	mux.Handle("/api/logout-all", required(http.HandlerFunc(accounts.LogoutAll)))
	mux.Handle("/api/me", required(http.HandlerFunc(accounts.Me)))

	mux.Handle("/api/feed/vertical", optional(http.HandlerFunc(feeds.Vertical)))
	mux.Handle("/api/feed/discover", optional(http.HandlerFunc(feeds.Discover)))
	mux.Handle("/api/feed/home", required(http.HandlerFunc(feeds.Home)))
	mux.HandleFunc("/api/feed/trending", feeds.Trending)
	mux.HandleFunc("/api/feed/popular", feeds.Popular)
	mux.Handle("/api/feed/chronological", optional(http.HandlerFunc(feeds.Chronological)))
	mux.HandleFunc("GET /api/feed/creator/{userId}", feeds.Creator)

	mux.Handle("GET /api/search/videos", optional(http.HandlerFunc(feeds.Search)))
	mux.HandleFunc("GET /api/search/users", people.Search)
	mux.HandleFunc("GET /api/search/hashtags", tags.Search)
	mux.HandleFunc("GET /api/hashtags/trending", tags.Trending)
	mux.Handle("GET /api/hashtags/{name}/videos", optional(http.HandlerFunc(feeds.Hashtag)))

	mux.Handle("/api/videos", required(http.HandlerFunc(clips.Upload)))
	mux.Handle("GET /api/videos/{id}", optional(http.HandlerFunc(clips.Get)))
	mux.Handle("PUT /api/videos/{id}", required(http.HandlerFunc(clips.Update)))
	mux.Handle("DELETE /api/videos/{id}", required(http.HandlerFunc(clips.Delete)))
	mux.Handle("POST /api/videos/{id}/like", required(http.HandlerFunc(clips.Like)))
	mux.Handle("DELETE /api/videos/{id}/like", required(http.HandlerFunc(clips.Unlike)))
	mux.HandleFunc("/api/videos/{id}/view", clips.View)

	mux.Handle("POST /api/users/{id}/follow", required(http.HandlerFunc(follows.Follow)))
	mux.Handle("DELETE /api/users/{id}/follow", required(http.HandlerFunc(follows.Unfollow)))
	mux.HandleFunc("GET /api/users/{id}", people.Profile)
	mux.HandleFunc("GET /api/users/{id}/stats", people.Stats)
	mux.HandleFunc("GET /api/users/{id}/followers", people.Followers)
	mux.HandleFunc("GET /api/users/{id}/following", people.Following)
	mux.Handle("PUT /api/profile", required(http.HandlerFunc(people.UpdateProfile)))
}

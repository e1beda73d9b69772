package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/clipstream/backend/internal/models"
)

type hashtagsPayload struct {
	Hashtags []models.Hashtag `json:"hashtags"`
}

func hashtagNames(tags []models.Hashtag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

func newHashtagEnv(t *testing.T) *testEnv {
	t.Helper()

	stale := seedVideo(1, creatorA, 0, 0, 30*24*time.Hour)
	stale.Hashtags = []string{"throwback"}
	first := seedVideo(2, creatorA, 0, 0, 3*time.Hour)
	first.Hashtags = []string{"surf", "sunrise"}
	second := seedVideo(3, creatorB, 0, 0, 2*time.Hour)
	second.Hashtags = []string{"surf"}
	third := seedVideo(4, creatorB, 0, 0, time.Hour)
	third.Hashtags = []string{"coffee"}

	return newTestEnv(t, stale, first, second, third)
}

func TestHashtagHandlerTrending(t *testing.T) {
	env := newHashtagEnv(t)

	var resp hashtagsPayload
	if status := env.do(t, http.MethodGet, "/api/hashtags/trending", "", nil, &resp); status != http.StatusOK {
		t.Fatalf("expected status 200 got %d", status)
	}
	got := hashtagNames(resp.Hashtags)
	want := []string{"surf", "coffee", "sunrise"}
	if len(got) != len(want) {
		t.Fatalf("expected trending %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected trending %v got %v", want, got)
		}
	}
	if resp.Hashtags[0].UsageCount != 2 {
		t.Fatalf("expected surf used twice got %d", resp.Hashtags[0].UsageCount)
	}

	env.do(t, http.MethodGet, "/api/hashtags/trending?limit=1", "", nil, &resp)
	if len(resp.Hashtags) != 1 {
		t.Fatalf("expected limit to apply got %d tags", len(resp.Hashtags))
	}
}

func TestHashtagHandlerSearch(t *testing.T) {
	env := newHashtagEnv(t)

	var resp hashtagsPayload
	if status := env.do(t, http.MethodGet, "/api/search/hashtags?q=%23SU", "", nil, &resp); status != http.StatusOK {
		t.Fatalf("expected status 200 got %d", status)
	}
	got := hashtagNames(resp.Hashtags)
	if len(got) != 2 || got[0] != "surf" || got[1] != "sunrise" {
		t.Fatalf("unexpected hashtag search %v", got)
	}

	if status := env.do(t, http.MethodGet, "/api/search/hashtags?q=%23", "", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected empty query to be rejected got %d", status)
	}

	env.do(t, http.MethodGet, "/api/search/hashtags?q=nothing", "", nil, &resp)
	if resp.Hashtags == nil || len(resp.Hashtags) != 0 {
		t.Fatalf("expected empty list got %+v", resp.Hashtags)
	}
}

package repositories

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/feed"
)

func TestBuildEligibleQueryVerticalFirstPage(t *testing.T) {
	sql, args, err := buildEligibleQuery(feed.Query{Ranking: feed.RankVertical, Limit: 21})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	for _, want := range []string{
		"is_public",
		"status = $1",
		"deleted_at IS NULL",
		"ORDER BY (views_count * 3 + likes_count * 7) DESC, id DESC",
		"LIMIT $2",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in query:\n%s", want, sql)
		}
	}
	if len(args) != 2 || args[0] != "ready" || args[1] != 21 {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestBuildEligibleQueryTrendingAfterCursor(t *testing.T) {
	since := time.Date(2024, 7, 3, 12, 0, 0, 0, time.UTC)
	after := &feed.Cursor{
		Ranking: feed.RankTrending,
		Key:     feed.Key{Score: 64, CreatedAt: since.Add(time.Hour), ID: 9},
	}

	sql, args, err := buildEligibleQuery(feed.Query{Ranking: feed.RankTrending, Since: since, After: after, Limit: 5})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	wantCond := "((views_count * 4 + likes_count * 6), created_at, id) < ($3, $4, $5)"
	if !strings.Contains(sql, wantCond) {
		t.Fatalf("expected keyset condition %q in query:\n%s", wantCond, sql)
	}
	if !strings.Contains(sql, "created_at >= $2") {
		t.Fatalf("expected trending window in query:\n%s", sql)
	}
	if !strings.Contains(sql, "ORDER BY (views_count * 4 + likes_count * 6) DESC, created_at DESC, id DESC") {
		t.Fatalf("unexpected ordering:\n%s", sql)
	}
	if len(args) != 6 || args[2] != int64(64) || args[4] != int64(9) || args[5] != 5 {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestBuildEligibleQueryRecentByAuthors(t *testing.T) {
	author := uuid.New()
	sql, args, err := buildEligibleQuery(feed.Query{
		Ranking:   feed.RankRecent,
		AuthorIDs: []string{author.String(), "not-a-uuid"},
		Limit:     3,
	})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	if !strings.Contains(sql, "user_id = ANY($2::uuid[])") {
		t.Fatalf("expected author filter in query:\n%s", sql)
	}
	if !strings.Contains(sql, "ORDER BY created_at DESC, id DESC") {
		t.Fatalf("unexpected ordering:\n%s", sql)
	}
	ids, ok := args[1].([]uuid.UUID)
	if !ok || len(ids) != 1 || ids[0] != author {
		t.Fatalf("expected malformed author ids to be dropped, got %#v", args[1])
	}
}

func TestBuildEligibleQueryRejectsUnknownRanking(t *testing.T) {
	if _, _, err := buildEligibleQuery(feed.Query{Ranking: "random"}); err == nil {
		t.Fatal("expected error for unknown ranking")
	}
}

func TestBuildEligibleQuerySearchAndHashtag(t *testing.T) {
	sql, args, err := buildEligibleQuery(feed.Query{
		Ranking: feed.RankVertical,
		Search:  "50%_off",
		Hashtag: "surf",
		Limit:   11,
	})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	if !strings.Contains(sql, "(title ILIKE $2 OR description ILIKE $2)") {
		t.Fatalf("expected search condition in query:\n%s", sql)
	}
	if !strings.Contains(sql, "WHERE vh.video_id = videos.id AND h.name = $3") {
		t.Fatalf("expected hashtag condition in query:\n%s", sql)
	}
	if args[1] != `%50\%\_off%` {
		t.Fatalf("expected escaped search pattern, got %#v", args[1])
	}
	if args[2] != "surf" || args[3] != 11 {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestContainsPatternEscapesMetacharacters(t *testing.T) {
	cases := map[string]string{
		"surf":     "%surf%",
		"100%":     `%100\%%`,
		"a_b":      `%a\_b%`,
		`back\ash`: `%back\\ash%`,
	}
	for term, want := range cases {
		if got := containsPattern(term); got != want {
			t.Fatalf("containsPattern(%q) = %q, want %q", term, got, want)
		}
	}
}

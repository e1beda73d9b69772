package feed

import (
	"cmp"
	"time"

	"github.com/clipstream/backend/internal/models"
)

// Score is an engagement score expressed in tenths so that equal scores compare
// exactly both in Go and in SQL.
type Score int64

// Float returns the score on its natural scale.
func (s Score) Float() float64 {
	return float64(s) / 10
}

// VerticalScore ranks the discover feed: 0.3*views + 0.7*likes.
func VerticalScore(views, likes int64) Score {
	return Score(3*views + 7*likes)
}

// TrendingScore ranks the trending feed: 0.4*views + 0.6*likes.
func TrendingScore(views, likes int64) Score {
	return Score(4*views + 6*likes)
}

// Ranking selects the ordering a feed is served in.
type Ranking string

const (
	// RankVertical orders by VerticalScore, then id.
	RankVertical Ranking = "vertical"
	// RankTrending orders by TrendingScore, then created_at, then id.
	RankTrending Ranking = "trending"
	// RankRecent orders by created_at, then id.
	RankRecent Ranking = "recent"
)

// Valid reports whether r is a known ranking.
func (r Ranking) Valid() bool {
	switch r {
	case RankVertical, RankTrending, RankRecent:
		return true
	}
	return false
}

// Weights returns the per-view and per-like weights, in tenths, of the ranking's score.
// Unscored rankings return zeros.
func (r Ranking) Weights() (views, likes int64) {
	switch r {
	case RankVertical:
		return 3, 7
	case RankTrending:
		return 4, 6
	}
	return 0, 0
}

// Score computes the ranking score of a video.
func (r Ranking) Score(v models.Video) Score {
	switch r {
	case RankVertical:
		return VerticalScore(v.ViewsCount, v.LikesCount)
	case RankTrending:
		return TrendingScore(v.ViewsCount, v.LikesCount)
	}
	return 0
}

// Key is the position of a video within a ranking.
type Key struct {
	Score     Score
	CreatedAt time.Time
	ID        int64
}

// KeyOf returns the sort key of v under r.
func (r Ranking) KeyOf(v models.Video) Key {
	return Key{Score: r.Score(v), CreatedAt: v.CreatedAt, ID: v.ID}
}

// Compare orders two keys the way the feed is served: it returns a negative number
// when a is served before b. Every ranking is descending on all of its columns.
func (r Ranking) Compare(a, b Key) int {
	switch r {
	case RankVertical:
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	case RankTrending:
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	default:
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	}
}

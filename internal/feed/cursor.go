package feed

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor indicates a pagination cursor that cannot be decoded or that was
// minted by a different ranking.
var ErrInvalidCursor = errors.New("invalid feed cursor")

// Cursor marks the last video a client has seen in a ranking.
type Cursor struct {
	Ranking Ranking
	Key
}

type cursorPayload struct {
	Ranking   Ranking   `json:"r"`
	Score     Score     `json:"s,omitempty"`
	CreatedAt time.Time `json:"t"`
	ID        int64     `json:"i"`
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(cursorPayload{
		Ranking:   c.Ranking,
		Score:     c.Score,
		CreatedAt: c.CreatedAt.UTC(),
		ID:        c.ID,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	if !payload.Ranking.Valid() || payload.ID <= 0 {
		return Cursor{}, ErrInvalidCursor
	}

	return Cursor{
		Ranking: payload.Ranking,
		Key:     Key{Score: payload.Score, CreatedAt: payload.CreatedAt, ID: payload.ID},
	}, nil
}

func parseCursor(token string, want Ranking) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	c, err := DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	if c.Ranking != want {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

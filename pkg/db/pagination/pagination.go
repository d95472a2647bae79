// Package pagination implements keyset page tokens for list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

var ErrInvalidToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token" json:"page_token,omitempty"`
	PageSize  int    `form:"page_size" json:"page_size,omitempty"`
}

// Limit clamps PageSize to [1, MaxPageSize]; zero or negative means default.
func (p Pagination) Limit() int {
	switch {
	case p.PageSize <= 0:
		return DefaultPageSize
	case p.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return p.PageSize
	}
}

// Cursor is the (created_at, id) key of the last row on a page.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// EncodeCursor returns a URL-safe token, so it can travel in a query string
// without escaping.
func EncodeCursor(c Cursor) (string, error) {
	c.CreatedAt = c.CreatedAt.UTC()
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(c.ID) == "" || c.CreatedAt.IsZero() {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

// Page trims a limit+1 fetch down to limit rows and builds the token for
// the next page from the last row kept.
func Page[T any](items []T, limit int, cursorOf func(T) Cursor) ([]T, PageInfo, error) {
	if limit <= 0 || len(items) <= limit {
		return items, PageInfo{}, nil
	}
	items = items[:limit]
	token, err := EncodeCursor(cursorOf(items[len(items)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	return items, PageInfo{NextPageToken: token, HasMore: true}, nil
}

package models

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// PageInput is keyset pagination over (created_at, id), newest first.
type PageInput struct {
	Limit int     `form:"limit" json:"limit"`
	After *string `form:"after" json:"after"`
}

func (p PageInput) limit() int {
	if p.Limit <= 0 {
		return defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		return maxPageLimit
	}
	return p.Limit
}

// new pagination combined struct embedding + generic struct
type Cursor interface {
	GetCursor() time.Time
	GetId() int
}

type Edge[N Cursor] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

type Connection[N Cursor] struct {
	Edges    []Edge[N] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

func EncodeCompositeCursor(createdAt time.Time, id int) string {
	cursor := fmt.Sprintf("%s|%d", createdAt.UTC().Format(time.RFC3339Nano), id)
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

// DecodeCompositeCursor returns ok=false for an absent or malformed cursor.
func DecodeCompositeCursor(cursor *string) (time.Time, int, bool) {
	if cursor == nil || *cursor == "" {
		return time.Time{}, 0, false
	}
	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return time.Time{}, 0, false
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return time.Time{}, 0, false
	}
	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, 0, false
	}
	return at, id, true
}

// FetchPage reads one page of dbCtx ordered by table.created_at DESC, table.id DESC.
func FetchPage[T Cursor](dbCtx *gorm.DB, table string, page PageInput) (*Connection[T], error) {
	limit := page.limit()
	createdCol := table + ".created_at"
	idCol := table + ".id"

	dbCtx = dbCtx.Order(createdCol + " DESC").Order(idCol + " DESC")
	if at, id, ok := DecodeCompositeCursor(page.After); ok {
		dbCtx = dbCtx.Where(
			fmt.Sprintf("%[1]s < ? OR (%[1]s = ? AND %[2]s < ?)", createdCol, idCol),
			at, at, id)
	}

	nodes := make([]*T, 0, limit+1)
	if err := dbCtx.Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	conn := &Connection[T]{Edges: make([]Edge[T], 0, limit)}
	for i, node := range nodes {
		if i == limit {
			conn.PageInfo.HasNextPage = true
			break
		}
		conn.Edges = append(conn.Edges, Edge[T]{
			Node:   node,
			Cursor: EncodeCompositeCursor((*node).GetCursor(), (*node).GetId()),
		})
	}
	if n := len(conn.Edges); n > 0 {
		conn.PageInfo.StartCursor = conn.Edges[0].Cursor
		conn.PageInfo.EndCursor = conn.Edges[n-1].Cursor
	}
	return conn, nil
}

// Nodes flattens the page.
func (c *Connection[N]) Nodes() []*N {
	out := make([]*N, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

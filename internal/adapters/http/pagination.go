package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Page wraps list results with pagination metadata.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// paginate slices items to one page. Out of range offsets yield an empty page;
// limits outside (0, maxLimit] fall back to defaultLimit.
func paginate[T any](items []T, offset, limit int) Page[T] {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)
	return Page[T]{
		Data:       append([]T{}, items[start:end]...),
		Pagination: Pagination{Offset: offset, Limit: limit, Total: total},
	}
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, base, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set("Link", strings.Join(links, ", "))
}

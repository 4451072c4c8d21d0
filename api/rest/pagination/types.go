package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Params holds pagination parameters from request
type Params struct {
	Limit  int
	Offset int
}

// Meta holds pagination metadata for response
type Meta struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Fetch is the number of rows to request from the store: one extra row
// tells us whether another page exists without a count query
func (p Params) Fetch() int {
	return p.Limit + 1
}

// NewMeta creates pagination metadata from params and the number of rows
// the store returned for Fetch()
func NewMeta(params Params, fetched int) Meta {
	return Meta{
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: fetched > params.Limit,
	}
}

// Trim drops the look-ahead row added by Fetch
func Trim[T any](params Params, rows []T) []T {
	if len(rows) > params.Limit {
		return rows[:params.Limit]
	}
	return rows
}

// DefaultParams returns pagination params with defaults applied
// defaultLimit: default items per page, maxLimit: maximum allowed limit
func DefaultParams(limit, offset, defaultLimit, maxLimit int) Params {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Params{
		Limit:  limit,
		Offset: offset,
	}
}

// FromQuery reads ?limit= and ?offset=, ignoring values that do not parse
func FromQuery(c *gin.Context, defaultLimit, maxLimit int) Params {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	return DefaultParams(limit, offset, defaultLimit, maxLimit)
}

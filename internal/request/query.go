package request

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Pagination is a parsed page/limit pair. Page is 1-based.
type Pagination struct {
	Page  int
	Limit int
}

// Offset saturates at math.MaxInt for pages too large to multiply out.
func (p Pagination) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages rounds up; zero items still report one page.
func (p Pagination) TotalPages(total int64) int {
	if p.Limit <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// ParsePagination reads page and limit. Missing values take the defaults,
// limits above maxLimit are clamped and non-numeric values are an error.
func ParsePagination(values url.Values, defaultLimit, maxLimit int) (Pagination, error) {
	p := Pagination{Page: 1, Limit: defaultLimit}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, ok := ParsePositiveInt(raw)
		if !ok {
			return Pagination{}, fmt.Errorf("page must be a positive integer")
		}
		p.Page = page
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, ok := ParsePositiveInt(raw)
		if !ok {
			return Pagination{}, fmt.Errorf("limit must be a positive integer")
		}
		p.Limit = limit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p, nil
}

// ParsePositiveInt parses a base-10 integer greater than zero.
func ParsePositiveInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, false
	}

	return n, true
}

// Float returns nil when key is absent.
func Float(values url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}

func Bool(values url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", key)
	}
	return &b, nil
}

// Strings collects a multi-valued parameter. Both repeated keys
// (?a=x&a=y) and comma-separated values (?a=x,y) are accepted.
func Strings(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

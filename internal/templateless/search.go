package templateless

import (
	"context"
	"net/url"
	"sort"
	"strconv"
)

// SearchPageSize is the page size used when iterating every search page.
const SearchPageSize = 500

// SearchResults is one page of a search.
type SearchResults[T any] struct {
	Results         []T `json:"results" yaml:"results"`
	Total           int `json:"total" yaml:"total"`
	TotalUnfiltered int `json:"totalUnfiltered" yaml:"totalUnfiltered"`
}

// Sorting orders search results. SortOrder is "a" or "d".
type Sorting struct {
	SortBy    string
	SortOrder string
}

// DefaultSorting orders by most recently updated.
var DefaultSorting = Sorting{SortBy: "updatedAt", SortOrder: "d"}

// SearchFunc fetches a single 1-based page of results.
type SearchFunc[T any] func(ctx context.Context, page, pageSize int) (*SearchResults[T], error)

// IterateSearchPages calls search for successive pages until total is
// covered and returns the concatenated results.
func IterateSearchPages[T any](ctx context.Context, search SearchFunc[T], pageSize int) ([]T, error) {
	if pageSize <= 0 {
		pageSize = SearchPageSize
	}

	var all []T
	page := 0
	for {
		page++
		res, err := search(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Results...)
		if page*pageSize >= res.Total {
			return all, nil
		}
	}
}

func searchQuery(filters map[string]string, s Sorting, page, pageSize int) url.Values {
	q := url.Values{}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if filters[k] != "" {
			q.Set(k, filters[k])
		}
	}
	if s.SortBy != "" {
		q.Set("sortBy", s.SortBy)
	}
	if s.SortOrder != "" {
		q.Set("sortOrder", s.SortOrder)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	return q
}

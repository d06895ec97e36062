package provider

import (
	"context"
	"fmt"
)

// PerPage is the page size requested from provider APIs
const PerPage = 100

// Paginate calls fetch with increasing page numbers starting at 1 and
// accumulates returned items. A page with fewer than PerPage items is treated
// as the last page, hence when total is an exact multiple of PerPage one extra
// empty page is requested. Any page error aborts pagination and no partial
// result is returned.
func Paginate[T any](ctx context.Context, fetch func(ctx context.Context, page, perPage int) ([]T, error)) ([]T, error) {
	var all []T

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := fetch(ctx, page, PerPage)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch page %d err:%w", page, err)
		}

		all = append(all, items...)

		if len(items) < PerPage {
			return all, nil
		}
	}
}

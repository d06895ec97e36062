package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoint serves total items in pages and counts requests
type fakeEndpoint struct {
	total    int
	failPage int
	requests []int
}

func (f *fakeEndpoint) fetch(_ context.Context, page, perPage int) ([]int, error) {
	f.requests = append(f.requests, page)
	if page == f.failPage {
		return nil, errors.New("boom")
	}
	var items []int
	for i := (page - 1) * perPage; i < min(page*perPage, f.total); i++ {
		items = append(items, i)
	}
	return items, nil
}

func TestPaginate_requestCount(t *testing.T) {
	tests := []struct {
		total        int
		wantRequests int
	}{
		{0, 1},
		{1, 1},
		{99, 1},
		{100, 2},
		{101, 2},
		{199, 2},
		{200, 3},
		{250, 3},
		{1000, 11},
	}
	for _, tt := range tests {
		f := &fakeEndpoint{total: tt.total}

		got, err := Paginate(context.Background(), f.fetch)
		require.NoError(t, err)

		assert.Len(t, got, tt.total, "total %d", tt.total)
		assert.Len(t, f.requests, tt.wantRequests, "total %d", tt.total)
		for i, page := range f.requests {
			assert.Equal(t, i+1, page, "pages must be requested in increasing order starting at 1")
		}
	}
}

func TestPaginate_pageError(t *testing.T) {
	f := &fakeEndpoint{total: 350, failPage: 3}

	got, err := Paginate(context.Background(), f.fetch)
	require.Error(t, err)
	assert.Nil(t, got, "no partial result should be returned")
	assert.Equal(t, []int{1, 2, 3}, f.requests)
}

func TestPaginate_contextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var requests int
	_, err := Paginate(ctx, func(_ context.Context, page, perPage int) ([]int, error) {
		requests++
		// cancel after first full page
		cancel()
		return make([]int, perPage), nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, requests)
}

package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Filter
		want Filter
	}{
		{
			name: "zero value gets defaults",
			in:   Filter{},
			want: Filter{Page: 1, PageSize: 20, OrderBy: "created_at", OrderDir: "desc", Filters: map[string]interface{}{}},
		},
		{
			name: "page size is capped",
			in:   Filter{Page: 3, PageSize: 1000, OrderBy: "name", OrderDir: "asc"},
			want: Filter{Page: 3, PageSize: 100, OrderBy: "name", OrderDir: "asc", Filters: map[string]interface{}{}},
		},
		{
			name: "unknown direction falls back to desc",
			in:   Filter{Page: -1, PageSize: -5, OrderDir: "sideways"},
			want: Filter{Page: 1, PageSize: 20, OrderBy: "created_at", OrderDir: "desc", Filters: map[string]interface{}{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, Filter{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
	assert.Equal(t, 0, Filter{Page: 0, PageSize: 20}.Offset())
}

func TestFilter_WithDoesNotMutateOriginal(t *testing.T) {
	base := DefaultFilter()
	derived := base.With("status", "active")

	assert.Empty(t, base.Filters)
	assert.Equal(t, "active", derived.Filters["status"])
}

func TestNewPaginated(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		pageSize  int
		wantPages int
	}{
		{"exact multiple", 40, 20, 2},
		{"remainder adds a page", 41, 20, 3},
		{"empty", 0, 20, 0},
		{"zero page size", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaginated([]int{1}, tt.total, 1, tt.pageSize)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.total, p.Total)
		})
	}
}

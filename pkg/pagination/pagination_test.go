package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRequestContext(t *testing.T, rawQuery string) *gin.Context {
	t.Helper()

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+rawQuery, nil)
	return c
}

func TestParsePageParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		page     int
		pageSize int
	}{
		{"默认值", "", DefaultPage, DefaultPageSize},
		{"正常参数", "page=3&page_size=25", 3, 25},
		{"非数字回退默认", "page=abc&page_size=xyz", DefaultPage, DefaultPageSize},
		{"零和负数回退默认", "page=0&page_size=-5", DefaultPage, DefaultPageSize},
		{"超过上限截断", "page=2&page_size=5000", 2, MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := ParsePageParams(newRequestContext(t, tt.query))
			assert.Equal(t, tt.page, params.Page)
			assert.Equal(t, tt.pageSize, params.PageSize)
		})
	}
}

func TestGetOffset(t *testing.T) {
	params := &PageParams{Page: 4, PageSize: 20}
	assert.Equal(t, 60, params.GetOffset())

	first := &PageParams{Page: 1, PageSize: 10}
	assert.Equal(t, 0, first.GetOffset())
}

func TestNewPageInfo(t *testing.T) {
	info := NewPageInfo(2, 10, 25)
	assert.Equal(t, 3, info.TotalPages)
	assert.True(t, info.HasNext)
	assert.True(t, info.HasPrev)

	last := NewPageInfo(3, 10, 25)
	assert.False(t, last.HasNext)

	empty := NewPageInfo(1, 10, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

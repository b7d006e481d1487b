package query

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithQuery(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/v1/admin/data-sources?"+rawQuery, nil)
	return c
}

func TestGetPaginationFromQuery(t *testing.T) {
	p, err := GetPaginationFromQuery(contextWithQuery(""))
	require.NoError(t, err)
	require.NotNil(t, p.Limit)
	assert.Equal(t, 20, *p.Limit)
	assert.Nil(t, p.Offset)
	assert.Nil(t, p.After)
	assert.Equal(t, "asc", p.Order)

	p, err = GetPaginationFromQuery(contextWithQuery("limit=5&offset=10&after=3&order=desc"))
	require.NoError(t, err)
	assert.Equal(t, 5, *p.Limit)
	assert.Equal(t, 10, *p.Offset)
	assert.Equal(t, uint(3), *p.After)
	assert.Equal(t, "desc", p.Order)
}

func TestGetPaginationFromQuery_Invalid(t *testing.T) {
	for _, raw := range []string{"limit=0", "limit=x", "offset=-1", "after=abc", "order=sideways"} {
		_, err := GetPaginationFromQuery(contextWithQuery(raw))
		assert.Error(t, err, raw)
	}
}

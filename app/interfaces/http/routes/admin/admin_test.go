package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/app/domain/auth"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

type grantResolver []string

func (g grantResolver) Resolve(ctx context.Context, userID string, claimed access.Scope) (*access.UserContext, error) {
	return &access.UserContext{UserID: userID, Scope: claimed, Permissions: g}, nil
}

func requestDeltaHeap(t *testing.T, permissions ...string) *httptest.ResponseRecorder {
	t.Helper()
	environment_variables.EnvironmentVariables.JWT_SECRET = []byte("debug-secret")
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewAdminRoute(auth.NewAuthService(grantResolver(permissions))).RegisterRouter(engine.Group("/"))

	signed, err := auth.CreateJwtSignedString(auth.UserClaim{
		Scope: access.ScopeAll,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin/debug/delta_heap", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestDeltaHeap_ServesGzippedProfile(t *testing.T) {
	rec := requestDeltaHeap(t, access.PermissionReadAll, access.PermissionCacheAdmin)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.Bytes()
	require.GreaterOrEqual(t, len(body), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, body[:2])
}

func TestDeltaHeap_RequiresCacheAdmin(t *testing.T) {
	rec := requestDeltaHeap(t, access.PermissionReadAll)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

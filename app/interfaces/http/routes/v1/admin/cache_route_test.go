package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/app/domain/auth"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/domain/query"
	"menlo.ai/analytics-gateway/app/domain/warming"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachestats"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachetest"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

type memoryRepository []*datasource.DataSource

func (r memoryRepository) FindByID(ctx context.Context, id int) (*datasource.DataSource, error) {
	for _, ds := range r {
		if ds.ID == id {
			return ds, nil
		}
	}
	return nil, datasource.ErrNotFound
}

func (r memoryRepository) FindByFilter(ctx context.Context, filter datasource.DataSourceFilter, pagination *query.Pagination) ([]*datasource.DataSource, error) {
	var out []*datasource.DataSource
	for _, ds := range r {
		if filter.Active != nil && ds.Active != *filter.Active {
			continue
		}
		out = append(out, ds)
	}
	return out, nil
}

func (r memoryRepository) Count(ctx context.Context, filter datasource.DataSourceFilter) (int64, error) {
	items, _ := r.FindByFilter(ctx, filter, nil)
	return int64(len(items)), nil
}

type staticFetcher []measure.Row

func (f staticFetcher) FetchAll(ctx context.Context, ds *datasource.DataSource, limit int) ([]measure.Row, error) {
	return f, nil
}

func (f staticFetcher) Fetch(ctx context.Context, ds *datasource.DataSource, sel datasource.Selection) ([]measure.Row, error) {
	return f, nil
}

type grantResolver []string

func (g grantResolver) Resolve(ctx context.Context, userID string, claimed access.Scope) (*access.UserContext, error) {
	return &access.UserContext{UserID: userID, Scope: claimed, Permissions: g}, nil
}

func newCacheRouter(t *testing.T, permissions ...string) *gin.Engine {
	t.Helper()
	environment_variables.EnvironmentVariables.JWT_SECRET = []byte("admin-secret")
	_, client := cachetest.NewRedis(t)
	cacheSvc := cache.NewRedisCacheService(client)
	store := indexstore.NewIndexStore(cacheSvc, cachekey.NewCodec("test"), indexstore.DefaultConfig())

	repo := memoryRepository{
		{ID: 1, Name: "revenue", Kind: datasource.KindMeasure, Active: true},
		{ID: 2, Name: "retired", Kind: datasource.KindMeasure, Active: false},
	}
	service, err := datasource.NewService(repo)
	require.NoError(t, err)
	t.Cleanup(service.Close)

	fetcher := staticFetcher{
		{measure.FieldMeasure: "Revenue", measure.FieldPracticeUID: 114, measure.FieldProviderUID: 501, measure.FieldFrequency: "Monthly", "value": 1000},
		{measure.FieldMeasure: "Revenue", measure.FieldPracticeUID: 114, measure.FieldProviderUID: 502, measure.FieldFrequency: "Monthly", "value": 2000},
	}
	cfg := warming.DefaultConfig()
	cfg.AutoWarmDisabled = true
	orch := warming.NewOrchestrator(store, cacheSvc, cache.NewRedisLocker(client), service, fetcher, cfg)
	reporter := cachestats.NewReporter(cacheSvc, store, cfg.StalenessThreshold)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewCacheRoute(auth.NewAuthService(grantResolver(permissions)), orch, service, reporter).RegisterRouter(engine.Group("/v1"))
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	signed, err := auth.CreateJwtSignedString(auth.UserClaim{
		Scope: access.ScopeAll,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Result T `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Result
}

func TestCacheRoute_RequiresCacheAdmin(t *testing.T) {
	engine := newCacheRouter(t, access.PermissionReadAll)

	rec := do(t, engine, http.MethodGet, "/v1/admin/cache/stats")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCacheRoute_WarmStatsInvalidate(t *testing.T) {
	engine := newCacheRouter(t, access.PermissionReadAll, access.PermissionCacheAdmin)

	rec := do(t, engine, http.MethodPost, "/v1/admin/cache/warm/1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	warmed := decode[warming.Result](t, rec)
	assert.Equal(t, warming.StatusWarmed, warmed.Status)
	assert.Equal(t, 2, warmed.EntriesWritten)

	rec = do(t, engine, http.MethodGet, "/v1/admin/cache/stats/1?top=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[cachestats.DataSourceStats](t, rec)
	assert.Equal(t, 2, stats.PrimaryKeys)
	assert.Equal(t, cachestats.StalenessFresh, stats.Staleness)
	assert.Len(t, stats.Largest, 1)

	rec = do(t, engine, http.MethodDelete, "/v1/admin/cache/1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	invalidated := decode[InvalidateResponse](t, rec)
	assert.Equal(t, 1, invalidated.DataSourceID)
	assert.Equal(t, 2, invalidated.EntriesDeleted)

	rec = do(t, engine, http.MethodGet, "/v1/admin/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[cachestats.Overview](t, rec)
	assert.Zero(t, overview.PrimaryKeys)
}

func TestCacheRoute_WarmUnknownDataSource(t *testing.T) {
	engine := newCacheRouter(t, access.PermissionReadAll, access.PermissionCacheAdmin)

	assert.Equal(t, http.StatusNotFound, do(t, engine, http.MethodPost, "/v1/admin/cache/warm/9").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, engine, http.MethodPost, "/v1/admin/cache/warm/abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, engine, http.MethodGet, "/v1/admin/cache/stats?top=-1").Code)
}

func TestCacheRoute_InvalidateAll(t *testing.T) {
	engine := newCacheRouter(t, access.PermissionReadAll, access.PermissionCacheAdmin)
	require.Equal(t, http.StatusOK, do(t, engine, http.MethodPost, "/v1/admin/cache/warm/1").Code)

	rec := do(t, engine, http.MethodDelete, "/v1/admin/cache")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[InvalidateAllResponse](t, rec)
	assert.Len(t, body.Results, 2)
	assert.Equal(t, 2, body.Results[1].EntriesDeleted)
	assert.Empty(t, body.Error)
}

func TestCacheRoute_ListDataSources(t *testing.T) {
	engine := newCacheRouter(t, access.PermissionReadAll, access.PermissionCacheAdmin)

	rec := do(t, engine, http.MethodGet, "/v1/admin/data-sources?active=true")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Total   int64                `json:"total"`
		Results []DataSourceResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body.Total)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "revenue", body.Results[0].Name)

	assert.Equal(t, http.StatusBadRequest, do(t, engine, http.MethodGet, "/v1/admin/data-sources?active=maybe").Code)
}

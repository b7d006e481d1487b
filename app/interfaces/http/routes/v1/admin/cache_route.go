package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"menlo.ai/analytics-gateway/app/domain/auth"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/query"
	"menlo.ai/analytics-gateway/app/domain/warming"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachestats"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
	"menlo.ai/analytics-gateway/app/interfaces/http/middleware"
	"menlo.ai/analytics-gateway/app/interfaces/http/responses"
	"menlo.ai/analytics-gateway/app/utils/background"
	"menlo.ai/analytics-gateway/app/utils/functional"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

const defaultTopN = 10

// CacheRoute exposes administrative cache operations.
type CacheRoute struct {
	authService       *auth.AuthService
	orchestrator      *warming.Orchestrator
	datasourceService *datasource.Service
	reporter          *cachestats.Reporter
}

func NewCacheRoute(
	authService *auth.AuthService,
	orchestrator *warming.Orchestrator,
	datasourceService *datasource.Service,
	reporter *cachestats.Reporter,
) *CacheRoute {
	return &CacheRoute{
		authService:       authService,
		orchestrator:      orchestrator,
		datasourceService: datasourceService,
		reporter:          reporter,
	}
}

func (route *CacheRoute) RegisterRouter(router gin.IRouter) {
	adminRouter := router.Group("/admin",
		middleware.AuthMiddleware(),
		route.authService.AnalyticsUserMiddleware(),
		route.authService.CacheAdminMiddleware(),
	)
	adminRouter.POST("/cache/warm", route.WarmAll)
	adminRouter.POST("/cache/warm/:data_source_id", route.Warm)
	adminRouter.DELETE("/cache", route.InvalidateAll)
	adminRouter.DELETE("/cache/:data_source_id", route.Invalidate)
	adminRouter.GET("/cache/stats", route.Overview)
	adminRouter.GET("/cache/stats/:data_source_id", route.DataSourceStats)
	adminRouter.GET("/data-sources", route.ListDataSources)
}

type WarmAllResponse struct {
	Task          string `json:"task"`
	DataSourceIDs []int  `json:"data_source_ids"`
}

type InvalidateResponse struct {
	DataSourceID int `json:"data_source_id"`
	indexstore.InvalidateResult
}

type InvalidateAllResponse struct {
	Results map[int]indexstore.InvalidateResult `json:"results"`
	Error   string                              `json:"error,omitempty"`
}

type DataSourceResponse struct {
	ID               int               `json:"id"`
	Name             string            `json:"name"`
	SchemaName       string            `json:"schema_name"`
	TableName        string            `json:"table_name"`
	Kind             datasource.Kind   `json:"kind"`
	Active           bool              `json:"active"`
	DateEndExclusive bool              `json:"date_end_exclusive"`
	Columns          map[string]string `json:"columns"`
}

func toDataSourceResponse(ds *datasource.DataSource) DataSourceResponse {
	columns := make(map[string]string, len(ds.Columns))
	for _, c := range ds.Columns {
		columns[c.Name] = string(c.Role)
	}
	return DataSourceResponse{
		ID:               ds.ID,
		Name:             ds.Name,
		SchemaName:       ds.SchemaName,
		TableName:        ds.TableName,
		Kind:             ds.Kind,
		Active:           ds.Active,
		DateEndExclusive: ds.DateEndExclusive,
		Columns:          columns,
	}
}

func dataSourceIDParam(reqCtx *gin.Context) (int, bool) {
	id, err := strconv.Atoi(reqCtx.Param("data_source_id"))
	if err != nil || id <= 0 {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "a6f0e1d3-7c42-4b8e-9d15-3e2f8b6c0a71",
			Error: "data_source_id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func topNQuery(reqCtx *gin.Context) (int, bool) {
	raw := reqCtx.Query("top")
	if raw == "" {
		return defaultTopN, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "0d7b3e59-2a1c-4f86-b4e0-9c5a7d3f1e28",
			Error: "top must be a non-negative integer",
		})
		return 0, false
	}
	return n, true
}

func abortCacheError(reqCtx *gin.Context, err error, code string) {
	status := http.StatusInternalServerError
	if errors.Is(err, cache.ErrCacheUnavailable) {
		status = http.StatusServiceUnavailable
	}
	reqCtx.AbortWithStatusJSON(status, responses.ErrorResponse{
		Code:  code,
		Error: err.Error(),
	})
}

// Warm godoc
// @Summary Warm one data source
// @Description Runs a warm now and waits for it. A warm already running on another instance is reported as skipped_locked.
// @Tags Administration API
// @Security BearerAuth
// @Produce json
// @Param data_source_id path int true "Data source ID"
// @Success 200 {object} responses.GeneralResponse[warming.Result] "Warm result"
// @Failure 400 {object} responses.ErrorResponse "Invalid data source id"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 404 {object} responses.ErrorResponse "Unknown data source"
// @Failure 500 {object} responses.ErrorResponse "Warm failed"
// @Router /v1/admin/cache/warm/{data_source_id} [post]
func (route *CacheRoute) Warm(reqCtx *gin.Context) {
	id, ok := dataSourceIDParam(reqCtx)
	if !ok {
		return
	}
	result, err := route.orchestrator.WarmManual(reqCtx.Request.Context(), id)
	if errors.Is(err, datasource.ErrNotFound) {
		reqCtx.AbortWithStatusJSON(http.StatusNotFound, responses.ErrorResponse{
			Code:  "f2c8a4d6-1e5b-4970-8a3d-6b0e9c7f2d14",
			Error: err.Error(),
		})
		return
	}
	if err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"data_source_id": id,
			"error":          err.Error(),
		}).Error("admin cache: manual warm failed")
		abortCacheError(reqCtx, err, "8e4d2b7a-3f6c-4a19-b5e8-0c1d7f9a3e62")
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[*warming.Result]{
		Status: responses.ResponseCodeOk,
		Result: result,
	})
}

// WarmAll godoc
// @Summary Warm every active data source
// @Description Starts warming every active data source in the background and returns immediately.
// @Tags Administration API
// @Security BearerAuth
// @Produce json
// @Success 202 {object} responses.GeneralResponse[WarmAllResponse] "Warm started"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 500 {object} responses.ErrorResponse "Unable to list data sources"
// @Router /v1/admin/cache/warm [post]
func (route *CacheRoute) WarmAll(reqCtx *gin.Context) {
	active, err := route.datasourceService.ListActive(reqCtx.Request.Context())
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "5b9e1f3c-7d20-4a86-9c4b-2e6f0a8d1b37",
			Error: err.Error(),
		})
		return
	}
	ids := functional.Map(active, func(ds *datasource.DataSource) int { return ds.ID })
	task := background.Go(reqCtx.Request.Context(), "warm:manual:all", route.orchestrator.Config().WarmTimeout, func(ctx context.Context) error {
		failed := 0
		for _, r := range route.orchestrator.WarmAll(ctx, ids) {
			if r.Status == warming.StatusFailed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("admin cache: %d of %d warms failed", failed, len(ids))
		}
		return nil
	})
	reqCtx.JSON(http.StatusAccepted, responses.GeneralResponse[WarmAllResponse]{
		Status: responses.ResponseCodeOk,
		Result: WarmAllResponse{Task: task.Name(), DataSourceIDs: ids},
	})
}

// Invalidate godoc
// @Summary Invalidate one data source
// @Description Deletes every cached entry and index of the data source and its warm metadata.
// @Tags Administration API
// @Security BearerAuth
// @Produce json
// @Param data_source_id path int true "Data source ID"
// @Success 200 {object} responses.GeneralResponse[InvalidateResponse] "Invalidated"
// @Failure 400 {object} responses.ErrorResponse "Invalid data source id"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 503 {object} responses.ErrorResponse "Cache unavailable"
// @Router /v1/admin/cache/{data_source_id} [delete]
func (route *CacheRoute) Invalidate(reqCtx *gin.Context) {
	id, ok := dataSourceIDParam(reqCtx)
	if !ok {
		return
	}
	result, err := route.orchestrator.Invalidate(reqCtx.Request.Context(), id)
	if err != nil {
		logger.GetLogger().Errorf("admin cache: invalidate data source %d: %v", id, err)
		abortCacheError(reqCtx, err, "c7a1e5f9-4b3d-4e28-8f60-1d9b2c4e7a05")
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[InvalidateResponse]{
		Status: responses.ResponseCodeOk,
		Result: InvalidateResponse{DataSourceID: id, InvalidateResult: result},
	})
}

// InvalidateAll godoc
// @Summary Invalidate every data source
// @Description Invalidates every configured data source and anything else found in the cache. Sources that fail are listed in error; the others are still invalidated.
// @Tags Administration API
// @Security BearerAuth
// @Produce json
// @Success 200 {object} responses.GeneralResponse[InvalidateAllResponse] "Invalidated"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 500 {object} responses.ErrorResponse "Some data sources failed"
// @Router /v1/admin/cache [delete]
func (route *CacheRoute) InvalidateAll(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()
	configured, _, err := route.datasourceService.List(ctx, datasource.DataSourceFilter{}, nil)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "e05d8c3a-6f1b-4d79-a2e4-7b9c0f5d3a18",
			Error: err.Error(),
		})
		return
	}
	ids := functional.Map(configured, func(ds *datasource.DataSource) int { return ds.ID })
	results, err := route.orchestrator.InvalidateAll(ctx, ids)
	if results == nil {
		abortCacheError(reqCtx, err, "3a8f6d1e-9c2b-4705-b4d3-5e0a7c9f1b62")
		return
	}
	body := InvalidateAllResponse{Results: results}
	status := http.StatusOK
	if err != nil {
		logger.GetLogger().Errorf("admin cache: invalidate all: %v", err)
		body.Error = err.Error()
		status = http.StatusInternalServerError
	}
	reqCtx.JSON(status, responses.GeneralResponse[InvalidateAllResponse]{
		Status: responses.ResponseCodeOk,
		Result: body,
	})
}

// Overview godoc
// @Summary Cache statistics
// @Description Reports key counts, estimated bytes and staleness per data source plus the largest entries. Walks the key space, so it is slow on big caches.
// @Tags Administration API
// @Security BearerAuth
// @Produce json
// @Param top query int false "Largest entries to report" default(10)
// @Success 200 {object} responses.GeneralResponse[cachestats.Overview] "Statistics"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 503 {object} responses.ErrorResponse "Cache unavailable"
// @Router /v1/admin/cache/stats [get]
func (route *CacheRoute) Overview(reqCtx *gin.Context) {
	top, ok := topNQuery(reqCtx)
	if !ok {
		return
	}
	overview, err := route.reporter.Overview(reqCtx.Request.Context(), top)
	if err != nil {
		abortCacheError(reqCtx, err, "b4e7c2a9-0d5f-4816-93b1-6a2d8e0f4c73")
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[*cachestats.Overview]{
		Status: responses.ResponseCodeOk,
		Result: overview,
	})
}

// DataSourceStats godoc
// @Summary Cache statistics of one data source
// @Tags Administration API
// @Security BearerAuth
// @Produce json
// @Param data_source_id path int true "Data source ID"
// @Param top query int false "Largest entries to report" default(10)
// @Success 200 {object} responses.GeneralResponse[cachestats.DataSourceStats] "Statistics"
// @Failure 400 {object} responses.ErrorResponse "Invalid parameters"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 503 {object} responses.ErrorResponse "Cache unavailable"
// @Router /v1/admin/cache/stats/{data_source_id} [get]
func (route *CacheRoute) DataSourceStats(reqCtx *gin.Context) {
	id, ok := dataSourceIDParam(reqCtx)
	if !ok {
		return
	}
	top, ok := topNQuery(reqCtx)
	if !ok {
		return
	}
	stats, err := route.reporter.DataSource(reqCtx.Request.Context(), id, top)
	if err != nil {
		abortCacheError(reqCtx, err, "9f1c5a3e-2b7d-4c60-8e94-0a3f6d2b8c15")
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[*cachestats.DataSourceStats]{
		Status: responses.ResponseCodeOk,
		Result: stats,
	})
}

// ListDataSources godoc
// @Summary List configured data sources
// @Tags Administration API
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Rows to skip"
// @Param after query int false "Return ids after this one"
// @Param order query string false "asc or desc" default(asc)
// @Param active query bool false "Only active or inactive sources"
// @Success 200 {object} responses.ListlResponse[DataSourceResponse] "Data sources"
// @Failure 400 {object} responses.ErrorResponse "Invalid parameters"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 500 {object} responses.ErrorResponse "Internal Server Error"
// @Router /v1/admin/data-sources [get]
func (route *CacheRoute) ListDataSources(reqCtx *gin.Context) {
	pagination, err := query.GetPaginationFromQuery(reqCtx)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "2d6b9e4f-8a1c-4357-b0e2-7f3c5a9d1e84",
			Error: err.Error(),
		})
		return
	}
	filter := datasource.DataSourceFilter{}
	if raw := reqCtx.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
				Code:  "6e0a3c8d-5b2f-4194-a7d6-1c9e4f0b3a57",
				Error: "active must be a boolean",
			})
			return
		}
		filter.Active = &active
	}
	items, total, err := route.datasourceService.List(reqCtx.Request.Context(), filter, pagination)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "7a4f1d9b-3e6c-4802-95b8-2d0c6e8f4a19",
			Error: err.Error(),
		})
		return
	}
	page := 0
	if pagination.Offset != nil && pagination.Limit != nil {
		page = *pagination.Offset / *pagination.Limit
	}
	reqCtx.JSON(http.StatusOK, responses.ListlResponse[DataSourceResponse]{
		Status:   responses.ResponseCodeOk,
		Page:     page,
		PageSize: *pagination.Limit,
		Total:    total,
		Results:  functional.Map(items, toDataSourceResponse),
	})
}

package analytics

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/app/domain/analytics"
	"menlo.ai/analytics-gateway/app/domain/auth"
	"menlo.ai/analytics-gateway/app/domain/common"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/query"
	"menlo.ai/analytics-gateway/app/interfaces/http/middleware"
	"menlo.ai/analytics-gateway/app/interfaces/http/responses"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

type AnalyticsRoute struct {
	authService *auth.AuthService
	pipeline    *analytics.Pipeline
}

func NewAnalyticsRoute(authService *auth.AuthService, pipeline *analytics.Pipeline) *AnalyticsRoute {
	return &AnalyticsRoute{
		authService: authService,
		pipeline:    pipeline,
	}
}

func (route *AnalyticsRoute) RegisterRouter(router gin.IRouter) {
	analyticsRouter := router.Group("/analytics",
		middleware.AuthMiddleware(),
		route.authService.AnalyticsUserMiddleware(),
	)
	analyticsRouter.POST("/query", route.Query)
}

// QueryRequest selects rows of one data source. Dates are YYYY-MM-DD.
type QueryRequest struct {
	DataSourceID int            `json:"data_source_id" binding:"required"`
	Measure      string         `json:"measure"`
	Frequency    string         `json:"frequency"`
	PracticeUIDs []int          `json:"practice_uids"`
	ProviderUIDs []int          `json:"provider_uids"`
	StartDate    string         `json:"start_date"`
	EndDate      string         `json:"end_date"`
	Filters      []query.Clause `json:"filters"`
}

func (r QueryRequest) toDomain() (analytics.Request, error) {
	req := analytics.Request{
		DataSourceID: r.DataSourceID,
		Measure:      r.Measure,
		Frequency:    r.Frequency,
		PracticeUIDs: r.PracticeUIDs,
		ProviderUIDs: r.ProviderUIDs,
		Filters:      r.Filters,
	}
	for _, bound := range []struct {
		raw    string
		target **time.Time
	}{
		{r.StartDate, &req.DateRange.Start},
		{r.EndDate, &req.DateRange.End},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, bound.raw)
		if err != nil {
			return req, err
		}
		*bound.target = &t
	}
	return req, nil
}

// Query godoc
// @Summary Query analytics data
// @Description Returns the rows of a data source the caller may see. Rows come from the shared cache when it is warm and from the analytics database otherwise; both paths apply access control, the date range and the filters in that order.
// @Tags Analytics API
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body QueryRequest true "Query"
// @Success 200 {object} responses.GeneralResponse[analytics.Result] "Query result"
// @Failure 400 {object} responses.ErrorResponse "Invalid request"
// @Failure 401 {object} responses.ErrorResponse "Missing or invalid token"
// @Failure 403 {object} responses.ErrorResponse "Claimed scope not granted"
// @Failure 404 {object} responses.ErrorResponse "Unknown data source"
// @Failure 500 {object} responses.ErrorResponse "Internal Server Error"
// @Router /v1/analytics/query [post]
func (route *AnalyticsRoute) Query(reqCtx *gin.Context) {
	user, ok := auth.GetUserAccessFromContext(reqCtx)
	if !ok {
		reqCtx.AbortWithStatusJSON(http.StatusUnauthorized, responses.ErrorResponse{
			Code: "0b6d3c4e-5f1a-4e0b-9a53-2f6a3f4f8e11",
		})
		return
	}
	var body QueryRequest
	if err := reqCtx.ShouldBindJSON(&body); err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "d8c1f0a2-61f4-4e55-8b2b-6b8f0a0c4f6e",
			Error: "invalid request body",
		})
		return
	}
	req, err := body.toDomain()
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "5a3f8c7e-2d0b-4c1e-9f65-7e9b1d2a4c30",
			Error: "dates must be YYYY-MM-DD",
		})
		return
	}

	result, err := route.pipeline.Execute(reqCtx.Request.Context(), req, *user)
	if err != nil {
		status, queryErr := errorFor(err)
		if status == http.StatusInternalServerError {
			logger.GetLogger().Errorf("analytics route: query data source %d: %v", req.DataSourceID, err)
		}
		reqCtx.AbortWithStatusJSON(status, responses.ErrorResponse{
			Code:  queryErr.Code,
			Error: queryErr.Message,
		})
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[*analytics.Result]{
		Status: responses.ResponseCodeOk,
		Result: result,
	})
}

// errorFor maps a pipeline failure to its status and client-facing error.
func errorFor(err error) (int, *common.Error) {
	switch {
	case errors.Is(err, access.ErrScopeSpoofing), errors.Is(err, access.ErrUnknownScope):
		return http.StatusForbidden, common.NewError("7c2e9d14-3b8a-4f6d-a1c5-0e4b7f9d2a68", err.Error())
	case errors.Is(err, analytics.ErrInvalidRequest), errors.Is(err, query.ErrInvalidClause):
		return http.StatusBadRequest, common.NewError("c41a7e90-8d2f-4b3c-b6e1-5f0d9a8c7b24", err.Error())
	case errors.Is(err, datasource.ErrNotFound):
		return http.StatusNotFound, common.NewError("e93b5f28-1c6d-4a7e-8f02-3d4c6b9a1e57", err.Error())
	}
	return http.StatusInternalServerError, common.NewError("2f8d6a31-9e4c-4b07-a5d3-8c1e0f7b6d92", "unable to answer the query")
}

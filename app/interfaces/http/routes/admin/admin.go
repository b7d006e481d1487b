package admin

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grafana/pyroscope-go/godeltaprof"
	"menlo.ai/analytics-gateway/app/domain/auth"
	"menlo.ai/analytics-gateway/app/interfaces/http/middleware"
	"menlo.ai/analytics-gateway/app/interfaces/http/responses"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

// AdminRoute serves process diagnostics to cache administrators.
type AdminRoute struct {
	authService  *auth.AuthService
	heapProfiler *godeltaprof.HeapProfiler
}

func NewAdminRoute(authService *auth.AuthService) *AdminRoute {
	return &AdminRoute{
		authService:  authService,
		heapProfiler: godeltaprof.NewHeapProfiler(),
	}
}

func (adminRoute *AdminRoute) RegisterRouter(router gin.IRouter) {
	debugRouter := router.Group("/admin/debug",
		middleware.AuthMiddleware(),
		adminRoute.authService.AnalyticsUserMiddleware(),
		adminRoute.authService.CacheAdminMiddleware(),
	)
	debugRouter.GET("/delta_heap", adminRoute.DeltaHeap)
}

// DeltaHeap godoc
// @Summary Heap allocations since the previous call
// @Description Returns a gzipped pprof heap profile holding only the allocations made since the last request to this endpoint.
// @Tags Administration API
// @Security BearerAuth
// @Produce octet-stream
// @Success 200 {file} binary "pprof profile"
// @Failure 403 {object} responses.ErrorResponse "Missing cache admin permission"
// @Failure 500 {object} responses.ErrorResponse "Profiling failed"
// @Router /admin/debug/delta_heap [get]
func (adminRoute *AdminRoute) DeltaHeap(reqCtx *gin.Context) {
	var buf bytes.Buffer
	if err := adminRoute.heapProfiler.Profile(&buf); err != nil {
		logger.GetLogger().Errorf("admin route: write delta heap profile: %v", err)
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "d1e6b3f8-4a2c-4975-8b0d-3f7e9c5a1d26",
			Error: "failed to write heap profile",
		})
		return
	}
	reqCtx.Header("Content-Disposition", `attachment; filename="delta_heap.pb.gz"`)
	reqCtx.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
}

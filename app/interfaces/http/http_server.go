package http

import (
	"fmt"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"menlo.ai/analytics-gateway/app/domain/healthcheck"
	"menlo.ai/analytics-gateway/app/infrastructure/metrics"
	"menlo.ai/analytics-gateway/app/interfaces/http/middleware"
	"menlo.ai/analytics-gateway/app/interfaces/http/routes/admin"
	v1 "menlo.ai/analytics-gateway/app/interfaces/http/routes/v1"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
	_ "menlo.ai/analytics-gateway/docs"
)

const defaultPort = 8080

type HttpServer struct {
	engine     *gin.Engine
	v1Route    *v1.V1Route
	adminRoute *admin.AdminRoute
}

func NewHttpServer(v1Route *v1.V1Route, adminRoute *admin.AdminRoute, healthcheckService *healthcheck.HealthcheckCrontabService) *HttpServer {
	gin.SetMode(gin.ReleaseMode)
	server := HttpServer{
		engine:     gin.New(),
		v1Route:    v1Route,
		adminRoute: adminRoute,
	}
	server.engine.Use(middleware.LoggerMiddleware(logger.GetLogger()))
	server.engine.Use(middleware.CORS())
	server.engine.Use(gin.Recovery())

	server.engine.GET("/health-check", func(c *gin.Context) {
		status := healthcheckService.Last()
		code := nethttp.StatusOK
		if status.Status == healthcheck.StatusDown {
			code = nethttp.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	server.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	server.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return &server
}

func (httpServer *HttpServer) Run() error {
	port := environment_variables.EnvironmentVariables.HTTP_PORT
	if port == 0 {
		port = defaultPort
	}
	root := httpServer.engine.Group("/")
	httpServer.v1Route.RegisterRouter(root)
	httpServer.adminRoute.RegisterRouter(root)
	logger.GetLogger().Infof("http server: listening on :%d", port)
	if err := httpServer.engine.Run(fmt.Sprintf(":%d", port)); err != nil {
		return err
	}
	return nil
}

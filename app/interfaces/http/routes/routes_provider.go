package routes

import (
	"github.com/google/wire"
	"menlo.ai/analytics-gateway/app/interfaces/http/routes/admin"
	v1 "menlo.ai/analytics-gateway/app/interfaces/http/routes/v1"
	v1admin "menlo.ai/analytics-gateway/app/interfaces/http/routes/v1/admin"
	"menlo.ai/analytics-gateway/app/interfaces/http/routes/v1/analytics"
)

var RouteProvider = wire.NewSet(
	analytics.NewAnalyticsRoute,
	v1admin.NewCacheRoute,
	v1.NewV1Route,
	admin.NewAdminRoute,
)

package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/app/interfaces/http/responses"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

type AuthService struct {
	scopeResolver access.ScopeResolver
}

func NewAuthService(scopeResolver access.ScopeResolver) *AuthService {
	return &AuthService{
		scopeResolver: scopeResolver,
	}
}

type UserContextKey string

const (
	UserContextKeyAccess UserContextKey = "UserContextKeyAccess"
)

// AnalyticsUserMiddleware resolves the caller's permissions and accessible
// practices and providers. It must run after the JWT middleware. A claimed
// scope the permissions do not back is rejected here, before any data is read.
func (s *AuthService) AnalyticsUserMiddleware() gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		claim, ok := GetUserClaimFromContext(reqCtx)
		if !ok || claim.Subject == "" {
			reqCtx.AbortWithStatusJSON(http.StatusUnauthorized, responses.ErrorResponse{
				Code: "3296ce86-783b-4c05-9fdb-930d3713024e",
			})
			return
		}
		user, err := s.scopeResolver.Resolve(reqCtx.Request.Context(), claim.Subject, claim.Scope)
		if err != nil {
			logger.GetLogger().WithFields(logrus.Fields{
				"user_id": claim.Subject,
				"error":   err.Error(),
			}).Warn("auth: unable to resolve user scope")
			reqCtx.AbortWithStatusJSON(http.StatusForbidden, responses.ErrorResponse{
				Code:  "6272df83-f538-421b-93ba-c2b6f6d39f39",
				Error: "unable to resolve access",
			})
			return
		}
		if user.OrganizationID == "" {
			user.OrganizationID = claim.OrganizationID
		}
		if err := access.ValidateScope(*user); err != nil {
			code := "b1ef40e7-9db9-477d-bb59-f3783585195d"
			if errors.Is(err, access.ErrUnknownScope) {
				code = "80e1017d-038a-48c1-9de7-c3cdffdddb95"
			}
			logger.GetLogger().WithFields(logrus.Fields{
				"user_id": user.UserID,
				"scope":   user.Scope,
			}).Warn("auth: rejected claimed scope")
			reqCtx.AbortWithStatusJSON(http.StatusForbidden, responses.ErrorResponse{
				Code:  code,
				Error: err.Error(),
			})
			return
		}
		SetUserAccessToContext(reqCtx, user)
		reqCtx.Next()
	}
}

// CacheAdminMiddleware admits callers holding the cache admin permission.
// It must run after AnalyticsUserMiddleware.
func (s *AuthService) CacheAdminMiddleware() gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		user, ok := GetUserAccessFromContext(reqCtx)
		if !ok || !user.HasPermission(access.PermissionCacheAdmin) {
			reqCtx.AbortWithStatusJSON(http.StatusForbidden, responses.ErrorResponse{
				Code:  "4026757e-d5a4-4cf7-8914-2c96f011084f",
				Error: "cache administration requires " + access.PermissionCacheAdmin,
			})
			return
		}
		reqCtx.Next()
	}
}

func GetUserClaimFromContext(reqCtx *gin.Context) (*UserClaim, bool) {
	v, ok := reqCtx.Get(ContextUserClaim)
	if !ok {
		return nil, false
	}
	claim, ok := v.(*UserClaim)
	return claim, ok
}

func GetUserAccessFromContext(reqCtx *gin.Context) (*access.UserContext, bool) {
	v, ok := reqCtx.Get(string(UserContextKeyAccess))
	if !ok {
		return nil, false
	}
	user, ok := v.(*access.UserContext)
	return user, ok
}

func SetUserAccessToContext(reqCtx *gin.Context, user *access.UserContext) {
	reqCtx.Set(string(UserContextKeyAccess), user)
}

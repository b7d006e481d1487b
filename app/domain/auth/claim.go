package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

const ContextUserClaim = "context_user_claim"

// UserClaim is issued by the identity provider. Subject is the user id and
// Scope the breadth the caller claims; the permission service decides
// whether the claim holds.
type UserClaim struct {
	Email          string       `json:"email,omitempty"`
	OrganizationID string       `json:"org_id,omitempty"`
	Scope          access.Scope `json:"scope"`
	jwt.RegisteredClaims
}

func CreateJwtSignedString(u UserClaim) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, u)
	return token.SignedString(environment_variables.EnvironmentVariables.JWT_SECRET)
}

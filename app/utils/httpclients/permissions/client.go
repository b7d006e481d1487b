package permissions

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/app/utils/httpclients"
	"menlo.ai/analytics-gateway/config/environment_variables"
	"resty.dev/v3"
)

var ErrUserNotFound = errors.New("permissions: user not found")

// accessResponse is the permission service's view of a user.
type accessResponse struct {
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"organization_id"`
	Permissions    []string `json:"permissions"`
	PracticeUIDs   []int    `json:"practice_uids"`
	ProviderUIDs   []int    `json:"provider_uids"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client resolves user scopes through the permission service.
type Client struct {
	resty *resty.Client
}

var _ access.ScopeResolver = (*Client)(nil)

func NewClient() *Client {
	return NewClientWithBaseURL(environment_variables.EnvironmentVariables.PERMISSION_SERVICE_URL)
}

func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		resty: httpclients.NewClient("PermissionClient").SetBaseURL(baseURL),
	}
}

func (c *Client) Resolve(ctx context.Context, userID string, claimed access.Scope) (*access.UserContext, error) {
	var body accessResponse
	var apiErr errorResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("userID", userID).
		SetResult(&body).
		SetError(&apiErr).
		Get("/v1/users/{userID}/access")
	if err != nil {
		return nil, fmt.Errorf("permissions: resolve %s: %w", userID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("permissions: resolve %s: status %d: %s", userID, resp.StatusCode(), apiErr.Error)
	}

	practices := body.PracticeUIDs
	if practices == nil {
		practices = []int{}
	}
	providers := body.ProviderUIDs
	if providers == nil && claimed.NeedsProviders() {
		providers = []int{}
	}
	return &access.UserContext{
		UserID:                 userID,
		OrganizationID:         body.OrganizationID,
		Scope:                  claimed,
		Permissions:            body.Permissions,
		AccessiblePracticeUIDs: practices,
		AccessibleProviderUIDs: providers,
	}, nil
}

package clients

import (
	"context"
	"net/http"
)

// AuthzClient asks the authorization service for permission decisions. Every
// method fails closed: any error is a denial.
type AuthzClient struct {
	*base
}

func NewAuthzClient(cfg Config, opts ...Option) *AuthzClient {
	return &AuthzClient{base: newBase("authz", cfg, opts...)}
}

type permissionRequest struct {
	UserID       string `json:"user_id"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Action       string `json:"action"`
}

type decision struct {
	Allowed *bool `json:"allowed"`
}

// CheckOwnership reports whether userID owns a resource owned by ownerID.
func (c *AuthzClient) CheckOwnership(_ context.Context, userID, ownerID string) bool {
	return userID != "" && userID == ownerID
}

// CheckPermission asks whether userID may perform action on the resource. A
// response without an explicit allowed flag is a denial.
func (c *AuthzClient) CheckPermission(ctx context.Context, userID, resourceType, resourceID, action string) bool {
	var out decision
	err := c.read(ctx, http.MethodPost, "/authz/check", permissionRequest{
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
	}, &out)
	if err != nil {
		c.logger.ErrorContext(ctx, "authorization check failed, denying",
			"user_id", userID,
			"resource_type", resourceType,
			"resource_id", resourceID,
			"action", action,
			"error", err,
		)
		return false
	}
	return out.Allowed != nil && *out.Allowed
}

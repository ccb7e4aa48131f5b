package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Role        domain.UserRole
	ZoneID      *uuid.UUID
	// System is set for API key callers and background jobs
	System bool
}

// ClientInfo is request metadata copied onto activity logs
type ClientInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type contextKey string

const (
	userContextKey contextKey = "userContext"
	clientInfoKey  contextKey = "clientInfo"
)

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// WithClientInfo stores request metadata in the context
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey, info)
}

// ClientInfoFromContext returns the request metadata, or the zero value
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey).(ClientInfo)
	return info
}

// SystemUser is the identity used by API key callers and scheduled jobs
func SystemUser() *UserContext {
	return &UserContext{DisplayName: "System", Email: "system@offers.local", Role: domain.RoleAdmin, System: true}
}

// ActorID returns the user ID to store on records, or nil for system actors
func (u *UserContext) ActorID() *uuid.UUID {
	if u == nil || u.System || u.UserID == uuid.Nil {
		return nil
	}
	id := u.UserID
	return &id
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRole) bool {
	return u.Role == role
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRole) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user sees every zone
func (u *UserContext) IsAdmin() bool {
	return u.System || u.Role == domain.RoleAdmin
}

// ZoneFilter returns the zone a non-admin user is limited to, or nil
func (u *UserContext) ZoneFilter() *uuid.UUID {
	if u.IsAdmin() {
		return nil
	}
	return u.ZoneID
}

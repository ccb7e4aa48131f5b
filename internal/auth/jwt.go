package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the application claims carried by access tokens
type Claims struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	ZoneID string `json:"zone_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 tokens issued for this API
type JWTValidator struct {
	secret   []byte
	issuer   string
	audience string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}
}

// ValidateToken validates a JWT token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: token validation is not configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role := domain.UserRole(claims.Role)
	switch role {
	case domain.RoleAdmin, domain.RoleZoneManager, domain.RoleZoneUser:
	case "":
		role = domain.RoleZoneUser
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	userCtx := &UserContext{
		UserID:      userID,
		DisplayName: claims.Name,
		Email:       claims.Email,
		Role:        role,
	}
	if claims.ZoneID != "" {
		if zoneID, err := uuid.Parse(claims.ZoneID); err == nil {
			userCtx.ZoneID = &zoneID
		}
	}
	if userCtx.DisplayName == "" {
		userCtx.DisplayName = userCtx.Email
	}
	return userCtx, nil
}

// SignToken issues a token for the user. Used by tooling and tests; production
// tokens come from the identity provider with the same secret.
func (v *JWTValidator) SignToken(user *UserContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	if user.ZoneID != nil {
		claims.ZoneID = user.ZoneID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

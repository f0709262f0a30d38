package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/skillgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

// JWTClaims is the bearer token issued by the account service. Only verification
// happens here; Courses lists the courses the subject teaches.
type JWTClaims struct {
	IsAdmin bool     `json:"is_admin,omitempty"`
	Courses []string `json:"courses,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(actor ctxutil.Actor, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
	}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	if as.jwtSecretKey == "" {
		return ctx, fmt.Errorf("token verification not configured")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, fmt.Errorf("Failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("Invalid or expired JWT token")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return ctx, fmt.Errorf("Invalid subject in token")
	}
	actor := &ctxutil.Actor{
		UserID:    subject,
		IsAdmin:   claims.IsAdmin,
		CourseIDs: append([]string(nil), claims.Courses...),
	}
	return ctxutil.WithActor(ctx, actor), nil
}

// IssueToken mints a token for actor. Used by local tooling and tests.
func (as *authService) IssueToken(actor ctxutil.Actor, ttl time.Duration) (string, error) {
	if as.jwtSecretKey == "" {
		return "", fmt.Errorf("token signing not configured")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := JWTClaims{
		IsAdmin: actor.IsAdmin,
		Courses: actor.CourseIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

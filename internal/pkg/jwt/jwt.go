package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	TokenTypeAccess = "access"
	TokenTypeStream = "stream"
)

var (
	ErrInvalidToken      = errors.New("invalid or malformed token")
	ErrAdminRequired     = errors.New("admin privilege required")
	ErrMissingEmployeeID = errors.New("employee_id claim is missing")
)

// Service issues and verifies the bearer tokens the timesheet API accepts.
// Tokens are minted by the identity service; GenerateAccessToken exists for
// local tooling and tests.
type Service interface {
	GenerateAccessToken(employeeID string, isAdmin bool) (token string, expiresAt int64, err error)
	// GenerateStreamToken issues a short-lived token usable in the stream
	// query string, where EventSource cannot send headers.
	GenerateStreamToken(employeeID string) (token string, expiresIn int, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) GenerateAccessToken(employeeID string, isAdmin bool) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	_, token, err = j.tokenAuth.Encode(map[string]interface{}{
		"employee_id": employeeID,
		"is_admin":    isAdmin,
		"type":        TokenTypeAccess,
		"exp":         expiresAt,
	})
	if err != nil {
		return "", 0, err
	}
	return token, expiresAt, nil
}

// GenerateStreamToken generates a 5 minute token for the live stream
func (j *JWTService) GenerateStreamToken(employeeID string) (token string, expiresIn int, err error) {
	expiresIn = 300
	_, token, err = j.tokenAuth.Encode(map[string]interface{}{
		"employee_id": employeeID,
		"type":        TokenTypeStream,
		"exp":         time.Now().Add(5 * time.Minute).Unix(),
	})
	if err != nil {
		return "", 0, err
	}
	return token, expiresIn, nil
}

// EmployeeIDFromContext reads the employee_id claim put there by jwtauth.Verifier.
func EmployeeIDFromContext(ctx context.Context) (string, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", ErrInvalidToken
	}
	id, ok := claims["employee_id"].(string)
	if !ok || id == "" {
		return "", ErrMissingEmployeeID
	}
	return id, nil
}

// IsAdmin reports the is_admin claim; a missing claim means false.
func IsAdmin(ctx context.Context) bool {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return false
	}
	admin, ok := claims["is_admin"].(bool)
	return ok && admin
}

// TokenType returns the "type" claim of the verified token
func TokenType(ctx context.Context) (string, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", ErrInvalidToken
	}
	typ, ok := claims["type"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	return typ, nil
}

package middleware

import (
	"net/http"
	"slices"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
)

// AuthRequired rejects requests whose verified token is missing, invalid or
// of a type other than the accepted ones. With no types given only access
// tokens pass. It must run after jwtauth.Verifier / jwtauth.Verify.
func AuthRequired(tokenTypes ...string) func(http.Handler) http.Handler {
	if len(tokenTypes) == 0 {
		tokenTypes = []string{jwt.TokenTypeAccess}
	}
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			tokenType, err := jwt.TokenType(r.Context())
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}
			if !slices.Contains(tokenTypes, tokenType) {
				response.HandleError(w, jwt.ErrInvalidToken)
				return
			}
			if _, err := jwt.EmployeeIDFromContext(r.Context()); err != nil {
				response.HandleError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

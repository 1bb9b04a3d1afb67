package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
)

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !jwt.IsAdmin(r.Context()) {
			response.HandleError(w, jwt.ErrAdminRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}

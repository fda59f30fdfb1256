package http

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/telstar/billing-backend-go/internal/domain/auth"
)

// callerEmail extracts the authenticated customer's email from the verified
// access token.
func callerEmail(r *http.Request) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", auth.ErrInvalidToken
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", auth.ErrInvalidToken
	}
	return email, nil
}

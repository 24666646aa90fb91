package auth

import "net/http"

const UserIdentityContextKey = "AuthenticatedUserIdentity"

// AuthenticationProvider guards the v1 API. The middleware wraps protected
// routes and must place the user identity on the request context; the router
// is mounted unauthenticated under /auth for login style flows.
type AuthenticationProvider interface {
	AuthenticationMiddleware(next http.Handler) http.Handler
	AuthenticationRouter() http.Handler
	AuthenticationType() any
}

type AuthenticatorType struct {
	Type string `json:"type"`
}

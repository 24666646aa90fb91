package null

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shimmeringbee/veluxactive/interface/http/auth"
)

var _ auth.AuthenticationProvider = (*Authenticator)(nil)

// Authenticator accepts every request, for deployments where the API is only
// reachable from a trusted network.
type Authenticator struct{}

func (a Authenticator) AuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), auth.UserIdentityContextKey, "NullAuthentication")))
	})
}

func (a Authenticator) AuthenticationRouter() http.Handler {
	return mux.NewRouter()
}

func (a Authenticator) AuthenticationType() any {
	return auth.AuthenticatorType{
		Type: "null",
	}
}

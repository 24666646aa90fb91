package external

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shimmeringbee/veluxactive/interface/http/auth"
)

var _ auth.AuthenticationProvider = (*Authenticator)(nil)

// Authenticator trusts a user header injected by a reverse proxy that has
// already authenticated the request.
type Authenticator struct {
	UserHeader string
}

const HttpUserHeader string = "HTTP_USER"

func (a Authenticator) AuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(a.UserHeader)
		if len(user) == 0 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), auth.UserIdentityContextKey, user)))
	})
}

func (a Authenticator) AuthenticationRouter() http.Handler {
	return mux.NewRouter()
}

func (a Authenticator) AuthenticationType() any {
	return auth.AuthenticatorType{
		Type: "external",
	}
}

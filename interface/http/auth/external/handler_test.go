package external

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shimmeringbee/veluxactive/interface/http/auth"
	"github.com/stretchr/testify/assert"
)

func TestAuthenticator_AuthenticationMiddleware(t *testing.T) {
	t.Run("a request carrying the trusted header passes its user through", func(t *testing.T) {
		a := Authenticator{UserHeader: HttpUserHeader}

		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set(HttpUserHeader, "wallace")

		handler := a.AuthenticationMiddleware(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "wallace", request.Context().Value(auth.UserIdentityContextKey))
			writer.WriteHeader(200)
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("a request without the trusted header is rejected", func(t *testing.T) {
		a := Authenticator{UserHeader: HttpUserHeader}

		req, _ := http.NewRequest("GET", "/", nil)

		rr := httptest.NewRecorder()
		a.AuthenticationMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("Downstream handler called, and should not have been.")
		})).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

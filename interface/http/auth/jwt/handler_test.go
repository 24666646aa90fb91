package jwt

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/shimmeringbee/veluxactive/interface/http/auth"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func testAuthenticator() Authenticator {
	return Authenticator{
		SystemIdentifier: "fixedIdentity",
		TTL:              30 * time.Second,

		Secret: []byte("test signing secret"),
		Users:  map[string]string{"wallace": "grommit"},
	}
}

func TestAuthenticator_SignAndVerify(t *testing.T) {
	t.Run("signs a new JWT for the uid provided", func(t *testing.T) {
		a := testAuthenticator()

		expectedUid := "uid"

		generatedToken, err := a.Sign(expectedUid)
		assert.NoError(t, err)

		actualUid, err := a.Verify(generatedToken)
		assert.NoError(t, err)
		assert.Equal(t, expectedUid, actualUid)
	})

	t.Run("verify fails if a JWT is provided with a None alg", func(t *testing.T) {
		jwtWithAlgNone := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiIxMjM0NTY3ODkwIiwibmFtZSI6IkpvaG4gRG9lIiwiYWRtaW4iOnRydWUsImp0aSI6ImRmNGNkNjNmLWU2ODAtNDFhMS05NGEyLTA0MDAxOTk2MmNmZiIsImlhdCI6MTYxOTgwMTIwMywiZXhwIjoxNjE5ODA0ODE1fQ."

		a := testAuthenticator()

		actualUid, err := a.Verify(jwtWithAlgNone)
		assert.Error(t, err)
		assert.Empty(t, actualUid)
	})

	t.Run("verify fails if a JWT was signed with a different secret", func(t *testing.T) {
		other := testAuthenticator()
		other.Secret = []byte("other signing secret")

		generatedToken, err := other.Sign("uid")
		assert.NoError(t, err)

		actualUid, err := testAuthenticator().Verify(generatedToken)
		assert.Error(t, err)
		assert.Empty(t, actualUid)
	})

	t.Run("verify fails if ticket has expired", func(t *testing.T) {
		jwt.TimeFunc = time.Now
		clock = func() time.Time { return time.Date(2021, time.April, 30, 9, 30, 0, 0, time.UTC) }
		defer func() { clock = time.Now }()

		a := testAuthenticator()

		generatedToken, err := a.Sign("uid")
		assert.NoError(t, err)

		actualUid, err := a.Verify(generatedToken)
		assert.Error(t, err)
		assert.Empty(t, actualUid)
	})

	t.Run("verify fails if the issuer is not the system identity", func(t *testing.T) {
		jwt.TimeFunc = time.Now
		clock = time.Now

		a := testAuthenticator()

		generatedToken, err := a.Sign("uid")
		assert.NoError(t, err)

		a.SystemIdentifier = "otherSystemIdentity"

		actualUid, err := a.Verify(generatedToken)
		assert.Error(t, err)
		assert.Empty(t, actualUid)
	})
}

func failTestHandler(t *testing.T) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		t.Fatal("Downstream handler called, and should not have been.")
	}
}

func TestAuthenticator_AuthenticationMiddleware(t *testing.T) {
	t.Run("verifies that a missing Authentication Bearer results in a 401, and does not call next handler", func(t *testing.T) {
		a := testAuthenticator()

		handler := a.AuthenticationMiddleware(failTestHandler(t))

		req, err := http.NewRequest("GET", "/", nil)
		if err != nil {
			t.Fatal(err)
		}

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Bearer realm=\"fixedIdentity\"", rr.Header().Get("WWW-Authenticate"))
	})

	t.Run("verifies that a http auth request results in a 400, and does not call next handler", func(t *testing.T) {
		a := testAuthenticator()

		req, err := http.NewRequest("GET", "/", nil)
		if err != nil {
			t.Fatal(err)
		}

		req.Header["Authentication"] = []string{"Basic d2FsbGFjZTpncm9tbWl0"}

		handler := a.AuthenticationMiddleware(failTestHandler(t))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("verifies that an invalid Authentication Bearer results in a 401, and does not call next handler", func(t *testing.T) {
		a := testAuthenticator()

		req, err := http.NewRequest("GET", "/", nil)
		if err != nil {
			t.Fatal(err)
		}

		req.Header["Authentication"] = []string{"Bearer not.a.token"}

		handler := a.AuthenticationMiddleware(failTestHandler(t))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("verifies that a valid Authentication Bearer results in the next handler being called", func(t *testing.T) {
		a := testAuthenticator()

		userId := "user id"
		token, _ := a.Sign(userId)

		req, err := http.NewRequest("GET", "/", nil)
		if err != nil {
			t.Fatal(err)
		}

		req.Header["Authentication"] = []string{fmt.Sprintf("Bearer %s", token)}

		handler := a.AuthenticationMiddleware(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, userId, request.Context().Value(auth.UserIdentityContextKey))
			writer.WriteHeader(200)
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestAuthenticator_AuthenticationRouter(t *testing.T) {
	t.Run("valid credentials exchange for a verifiable token", func(t *testing.T) {
		a := testAuthenticator()

		req, _ := http.NewRequest("POST", "/login", strings.NewReader(`{"username":"wallace","password":"grommit"}`))
		rr := httptest.NewRecorder()
		a.AuthenticationRouter().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		token := gjson.Get(rr.Body.String(), "token").String()
		uid, err := a.Verify(token)
		assert.NoError(t, err)
		assert.Equal(t, "wallace", uid)
	})

	t.Run("bad credentials are rejected", func(t *testing.T) {
		a := testAuthenticator()

		req, _ := http.NewRequest("POST", "/login", strings.NewReader(`{"username":"wallace","password":"wrong"}`))
		rr := httptest.NewRecorder()
		a.AuthenticationRouter().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("a malformed body is rejected", func(t *testing.T) {
		a := testAuthenticator()

		req, _ := http.NewRequest("POST", "/login", strings.NewReader(`{`))
		rr := httptest.NewRecorder()
		a.AuthenticationRouter().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

package velux

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://app.velux-active.com/"

const tokenPath = "oauth2/token"

// The Velux Active token endpoint rejects resource owner password grants
// that do not carry these two extra form fields.
const apiAppVersion = "11201"
const apiUserPrefix = "velux"

// Renew this long before the token actually expires.
const tokenExpiryMargin = 60 * time.Second

var clock = time.Now

// Credentials holds the account level secrets for the resource owner
// password grant.
type Credentials struct {
	Username     string
	Password     string
	ClientId     string
	ClientSecret string
}

// Session produces a bearer token on demand, renewing it transparently.
type Session interface {
	Token(ctx context.Context) (string, error)
	Authenticated() bool
	Close()
}

var _ Session = (*CloudSession)(nil)

type CloudSession struct {
	baseURL     string
	credentials Credentials
	client      *http.Client
	logger      logwrap.Logger

	lock          sync.Mutex
	accessToken   string
	refreshToken  string
	expiresAt     time.Time
	authenticated bool
}

func NewSession(baseURL string, credentials Credentials, client *http.Client, l logwrap.Logger) *CloudSession {
	return &CloudSession{
		baseURL:     baseURL,
		credentials: credentials,
		client:      client,
		logger:      l,
	}
}

// Token returns a valid access token, performing a refresh token grant or a
// full password grant as needed. Failures are ErrAuthentication for rejected
// grants and ErrTransport for everything else.
func (s *CloudSession) Token(ctx context.Context) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.accessToken != "" && clock().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if s.refreshToken != "" {
		err := s.grant(ctx, url.Values{
			"grant_type":    []string{"refresh_token"},
			"refresh_token": []string{s.refreshToken},
		})
		if err == nil {
			return s.accessToken, nil
		}

		s.logger.LogWarn(ctx, "Refresh token grant failed, falling back to password grant.", logwrap.Err(err))
	}

	err := s.grant(ctx, url.Values{
		"grant_type": []string{"password"},
		"username":   []string{s.credentials.Username},
		"password":   []string{s.credentials.Password},
	})
	if err != nil {
		return "", err
	}

	return s.accessToken, nil
}

func (s *CloudSession) grant(ctx context.Context, form url.Values) error {
	form.Set("client_id", s.credentials.ClientId)
	form.Set("client_secret", s.credentials.ClientSecret)
	form.Set("app_version", apiAppVersion)
	form.Set("user_prefix", apiUserPrefix)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: constructing token request: %s", ErrTransport, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading token response: %s", ErrTransport, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		s.authenticated = false
		return fmt.Errorf("%w: token endpoint returned %d", ErrAuthentication, resp.StatusCode)
	}

	token := gjson.GetBytes(data, "access_token")
	if !token.Exists() || token.String() == "" {
		s.authenticated = false
		return fmt.Errorf("%w: token endpoint response missing access_token", ErrAuthentication)
	}

	// The cloud has been seen returning both spellings.
	lifetime := gjson.GetBytes(data, "expires_in").Int()
	if lifetime == 0 {
		lifetime = gjson.GetBytes(data, "expire_in").Int()
	}
	if lifetime == 0 {
		lifetime = 3600
	}

	s.accessToken = token.String()
	s.refreshToken = gjson.GetBytes(data, "refresh_token").String()
	s.expiresAt = clock().Add(time.Duration(lifetime)*time.Second - tokenExpiryMargin)
	s.authenticated = true

	s.logger.LogDebug(ctx, "Obtained access token.", logwrap.Datum("expiresAt", s.expiresAt.String()))

	return nil
}

func (s *CloudSession) Authenticated() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.authenticated
}

// Close discards the cached tokens. There is no cloud side revocation
// endpoint, dropping the material locally is all that can be done.
func (s *CloudSession) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.authenticated = false
}

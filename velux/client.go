package velux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shimmeringbee/logwrap"
)

const homesDataPath = "api/homesdata"
const homeStatusPath = "api/homestatus"
const setStatePath = "syncapi/v1/setstate"

// Client is a thin request/response wrapper over the Velux Active HTTP API.
// It performs no caching, every call is a round trip. Each call is bounded by
// the configured timeout and reports failures as ErrAuthentication or
// ErrTransport.
type Client struct {
	baseURL string
	session Session
	client  *http.Client
	timeout time.Duration
	logger  logwrap.Logger
}

func NewClient(baseURL string, session Session, client *http.Client, timeout time.Duration, l logwrap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		session: session,
		client:  client,
		timeout: timeout,
		logger:  l,
	}
}

// HomeTopology fetches the homesdata view: every module known for the
// account's home, with names populated. If the account has more than one home
// the first is used.
func (c *Client) HomeTopology(ctx context.Context) (Home, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return Home{}, err
	}

	form := url.Values{
		"access_token":  []string{token},
		"gateway_types": []string{ModuleTypeGateway},
	}

	data, err := c.postForm(ctx, homesDataPath, form)
	if err != nil {
		return Home{}, err
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return Home{}, fmt.Errorf("%w: malformed homesdata response: %s", ErrTransport, err.Error())
	}

	if len(r.Body.Homes) == 0 {
		return Home{}, fmt.Errorf("%w: homesdata response contained no homes", ErrTransport)
	}

	if len(r.Body.Homes) > 1 {
		c.logger.LogDebug(ctx, "Account has multiple homes, using the first.", logwrap.Datum("homeCount", len(r.Body.Homes)))
	}

	return r.Body.Homes[0], nil
}

// HomeStatus fetches the live status view of the home's modules. The name
// field is typically empty and needs backfilling from topology data.
func (c *Client) HomeStatus(ctx context.Context, homeId string) ([]Module, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"access_token": []string{token},
		"home_id":      []string{homeId},
	}

	data, err := c.postForm(ctx, homeStatusPath, form)
	if err != nil {
		return nil, err
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: malformed homestatus response: %s", ErrTransport, err.Error())
	}

	return r.Body.Home.Modules, nil
}

// SetPosition submits a new target position for a blind, on the cloud scale.
// Best effort: the cloud's acceptance is never verified here, confirmation is
// inferred later by polling.
func (c *Client) SetPosition(ctx context.Context, position int, blindId string, gatewayId string, homeId string) error {
	p := position

	return c.postState(ctx, setStateRequest{
		Home: setStateHome{
			Id: homeId,
			Modules: []setStateModule{
				{
					Id:             blindId,
					Bridge:         gatewayId,
					TargetPosition: &p,
				},
			},
		},
	})
}

// Stop halts all movement through the blind's gateway, which is how the cloud
// models a stop. Same best effort contract as SetPosition.
func (c *Client) Stop(ctx context.Context, blindId string, gatewayId string, homeId string) error {
	return c.postState(ctx, setStateRequest{
		Home: setStateHome{
			Id: homeId,
			Modules: []setStateModule{
				{
					Id:            gatewayId,
					StopMovements: "all",
				},
			},
		},
	})
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: constructing request for %s: %s", ErrTransport, path, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTransport, path, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response for %s: %s", ErrTransport, path, err.Error())
	}

	if err := checkStatus(resp.StatusCode, path); err != nil {
		return nil, err
	}

	return data, nil
}

func (c *Client) postState(ctx context.Context, body setStateRequest) error {
	token, err := c.session.Token(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshalling setstate request: %s", ErrTransport, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+setStatePath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: constructing setstate request: %s", ErrTransport, err.Error())
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrTransport, setStatePath, err.Error())
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("%w: draining setstate response: %s", ErrTransport, err.Error())
	}

	return checkStatus(resp.StatusCode, setStatePath)
}

func checkStatus(statusCode int, path string) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", ErrAuthentication, path, statusCode)
	default:
		return fmt.Errorf("%w: %s returned %d", ErrTransport, path, statusCode)
	}
}

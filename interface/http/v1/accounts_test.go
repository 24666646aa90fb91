package v1

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/veluxactive/command"
	"github.com/shimmeringbee/veluxactive/interface/http/auth/null"
	"github.com/shimmeringbee/veluxactive/state"
	"github.com/shimmeringbee/veluxactive/velux"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func testLogger() logwrap.Logger {
	return logwrap.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))
}

type invocation struct {
	account string
	gateway string
	blind   string
	cmd     command.Command
}

type testHarness struct {
	accounts *state.AccountMux
	router   http.Handler

	invocations []invocation
	invokeErr   error

	scans   []string
	scanErr error
}

func newHarness() *testHarness {
	h := &testHarness{
		accounts: state.NewAccountMux(),
	}

	invoke := func(ctx context.Context, account string, gatewayId string, blindId string, cmd command.Command) error {
		h.invocations = append(h.invocations, invocation{account: account, gateway: gatewayId, blind: blindId, cmd: cmd})
		return h.invokeErr
	}

	scan := func(ctx context.Context, account string) error {
		h.scans = append(h.scans, account)
		return h.scanErr
	}

	h.router = ConstructRouter(h.accounts, invoke, scan, testLogger(), null.Authenticator{}, state.NewEventBus())
	return h
}

func (h *testHarness) attachAccount() *state.Account {
	a := state.NewAccount("acct")
	a.SetOnline()
	h.accounts.Add("acct", a)
	return a
}

func (h *testHarness) do(method string, path string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func TestAccountRoutes(t *testing.T) {
	t.Run("the account list includes the full hierarchy", func(t *testing.T) {
		h := newHarness()
		a := h.attachAccount()
		a.AttachGateway("gw-1").AttachBlind("blind-1")

		rr := h.do("GET", "/accounts", "")
		assert.Equal(t, http.StatusOK, rr.Code)

		body := rr.Body.String()
		assert.True(t, gjson.Get(body, "acct.online").Bool())
		assert.Equal(t, "gw-1", gjson.Get(body, "acct.gateways.0.identifier").String())
		assert.Equal(t, "blind-1", gjson.Get(body, "acct.gateways.0.blinds.0.identifier").String())
	})

	t.Run("an unknown account is a 404", func(t *testing.T) {
		h := newHarness()

		rr := h.do("GET", "/accounts/missing", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("a blind reports its position on the external scale", func(t *testing.T) {
		h := newHarness()
		a := h.attachAccount()
		blind := a.AttachGateway("gw-1").AttachBlind("blind-1")
		blind.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 30})

		rr := h.do("GET", "/accounts/acct/gateways/gw-1/blinds/blind-1", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(70), gjson.Get(rr.Body.String(), "position").Int())
	})

	t.Run("an unknown gateway or blind is a 404", func(t *testing.T) {
		h := newHarness()
		a := h.attachAccount()
		a.AttachGateway("gw-1")

		rr := h.do("GET", "/accounts/acct/gateways/gw-9", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = h.do("GET", "/accounts/acct/gateways/gw-1/blinds/blind-9", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCommandRoute(t *testing.T) {
	t.Run("a command posts through to the invoker", func(t *testing.T) {
		h := newHarness()
		h.attachAccount()

		rr := h.do("POST", "/accounts/acct/gateways/gw-1/blinds/blind-1/commands/setposition", `{"position":40}`)
		assert.Equal(t, http.StatusAccepted, rr.Code)

		if assert.Len(t, h.invocations, 1) {
			assert.Equal(t, invocation{
				account: "acct",
				gateway: "gw-1",
				blind:   "blind-1",
				cmd:     command.SetPosition{Position: 40},
			}, h.invocations[0])
		}
	})

	t.Run("an unparseable command is a 400 and never reaches the invoker", func(t *testing.T) {
		h := newHarness()
		h.attachAccount()

		rr := h.do("POST", "/accounts/acct/gateways/gw-1/blinds/blind-1/commands/wiggle", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, h.invocations)
	})

	t.Run("unknown node errors from the invoker map to a 404", func(t *testing.T) {
		h := newHarness()
		h.attachAccount()
		h.invokeErr = command.ErrUnknownBlind

		rr := h.do("POST", "/accounts/acct/gateways/gw-1/blinds/blind-9/commands/up", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("cloud failures map to a 502", func(t *testing.T) {
		h := newHarness()
		h.attachAccount()
		h.invokeErr = velux.ErrTransport

		rr := h.do("POST", "/accounts/acct/gateways/gw-1/blinds/blind-1/commands/up", "")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestScanRoute(t *testing.T) {
	t.Run("a scan request runs against the named account", func(t *testing.T) {
		h := newHarness()
		h.attachAccount()

		rr := h.do("POST", "/accounts/acct/discovery/scan", "")
		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.Equal(t, []string{"acct"}, h.scans)
	})

	t.Run("a failed scan maps to a 502", func(t *testing.T) {
		h := newHarness()
		h.attachAccount()
		h.scanErr = velux.ErrTransport

		rr := h.do("POST", "/accounts/acct/discovery/scan", "")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestAuthRoutes(t *testing.T) {
	t.Run("the auth type route reports the provider", func(t *testing.T) {
		h := newHarness()

		rr := h.do("GET", "/auth/type", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "null", gjson.Get(rr.Body.String(), "type").String())
	})

	t.Run("the auth check route reports the authenticated identity", func(t *testing.T) {
		h := newHarness()

		rr := h.do("GET", "/auth/check", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, gjson.Get(rr.Body.String(), "authenticated").Bool())
	})
}

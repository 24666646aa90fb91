package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/veluxactive/command"
	"github.com/shimmeringbee/veluxactive/interface/exporter"
	"github.com/shimmeringbee/veluxactive/state"
	"github.com/shimmeringbee/veluxactive/velux"
)

type accountController struct {
	accounts state.AccountMapper
	invoker  command.Invoker
	scanner  ScanInvoker
	logger   logwrap.Logger
}

func (a *accountController) listAccounts(w http.ResponseWriter, r *http.Request) {
	apiAccounts := make(map[string]exporter.ExportedAccount)

	for name, account := range a.accounts.Accounts() {
		apiAccounts[name] = exporter.ExportAccount(account)
	}

	writeJSON(w, apiAccounts)
}

func (a *accountController) getAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := a.lookupAccount(w, r)
	if !ok {
		return
	}

	writeJSON(w, exporter.ExportAccount(account))
}

func (a *accountController) scanAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := a.lookupAccount(w, r)
	if !ok {
		return
	}

	if err := a.scanner(r.Context(), account.Id()); err != nil {
		a.logger.LogWarn(r.Context(), "On demand discovery scan failed.", logwrap.Err(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (a *accountController) listGateways(w http.ResponseWriter, r *http.Request) {
	account, ok := a.lookupAccount(w, r)
	if !ok {
		return
	}

	apiGateways := make(map[string]exporter.ExportedGateway)
	for id, gw := range account.Gateways() {
		apiGateways[id] = exporter.ExportGateway(gw)
	}

	writeJSON(w, apiGateways)
}

func (a *accountController) getGateway(w http.ResponseWriter, r *http.Request) {
	gw, ok := a.lookupGateway(w, r)
	if !ok {
		return
	}

	writeJSON(w, exporter.ExportGateway(gw))
}

func (a *accountController) listBlinds(w http.ResponseWriter, r *http.Request) {
	gw, ok := a.lookupGateway(w, r)
	if !ok {
		return
	}

	apiBlinds := make(map[string]exporter.ExportedBlind)
	for id, blind := range gw.Blinds() {
		apiBlinds[id] = exporter.ExportBlind(blind)
	}

	writeJSON(w, apiBlinds)
}

func (a *accountController) getBlind(w http.ResponseWriter, r *http.Request) {
	gw, ok := a.lookupGateway(w, r)
	if !ok {
		return
	}

	blind, found := gw.Blind(mux.Vars(r)["blind"])
	if !found {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, exporter.ExportBlind(blind))
}

func (a *accountController) invokeBlindCommand(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cmd, err := command.Parse(params["command"], body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.invoker(r.Context(), params["account"], params["gateway"], params["blind"], cmd); err != nil {
		a.logger.LogWarn(r.Context(), "Command invocation failed.", logwrap.Datum("command", params["command"]), logwrap.Err(err))

		switch {
		case errors.Is(err, command.ErrUnknownAccount), errors.Is(err, command.ErrUnknownGateway), errors.Is(err, command.ErrUnknownBlind):
			http.NotFound(w, r)
		case errors.Is(err, command.ErrUnknownCommand), errors.Is(err, command.ErrInvalidPosition):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, velux.ErrAuthentication), errors.Is(err, velux.ErrTransport):
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (a *accountController) lookupAccount(w http.ResponseWriter, r *http.Request) (*state.Account, bool) {
	account, found := a.accounts.Account(mux.Vars(r)["account"])
	if !found {
		http.NotFound(w, r)
		return nil, false
	}

	return account, true
}

func (a *accountController) lookupGateway(w http.ResponseWriter, r *http.Request) (*state.Gateway, bool) {
	account, ok := a.lookupAccount(w, r)
	if !ok {
		return nil, false
	}

	gw, found := account.Gateway(mux.Vars(r)["gateway"])
	if !found {
		http.NotFound(w, r)
		return nil, false
	}

	return gw, true
}

func writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Add("content-type", "application/json")
	w.Write(data)
}

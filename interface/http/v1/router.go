package v1

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/veluxactive/command"
	"github.com/shimmeringbee/veluxactive/interface/exporter"
	"github.com/shimmeringbee/veluxactive/interface/http/auth"
	"github.com/shimmeringbee/veluxactive/state"
)

// ScanInvoker runs an on-demand discovery scan for the named account.
type ScanInvoker func(ctx context.Context, account string) error

func ConstructRouter(accounts state.AccountMapper, invoke command.Invoker, scan ScanInvoker, l logwrap.Logger, ap auth.AuthenticationProvider, eventbus state.EventSubscriber) http.Handler {
	protected := mux.NewRouter()

	ac := accountController{
		accounts: accounts,
		invoker:  invoke,
		scanner:  scan,
		logger:   l,
	}

	ec := eventsController{
		eventbus: eventbus,
		eventMapper: &exporter.EventExporter{
			Accounts: accounts,
		},
		logger: l,
	}

	protected.HandleFunc("/accounts", ac.listAccounts).Methods("GET")
	protected.HandleFunc("/accounts/{account}", ac.getAccount).Methods("GET")
	protected.HandleFunc("/accounts/{account}/discovery/scan", ac.scanAccount).Methods("POST")

	protected.HandleFunc("/accounts/{account}/gateways", ac.listGateways).Methods("GET")
	protected.HandleFunc("/accounts/{account}/gateways/{gateway}", ac.getGateway).Methods("GET")

	protected.HandleFunc("/accounts/{account}/gateways/{gateway}/blinds", ac.listBlinds).Methods("GET")
	protected.HandleFunc("/accounts/{account}/gateways/{gateway}/blinds/{blind}", ac.getBlind).Methods("GET")
	protected.HandleFunc("/accounts/{account}/gateways/{gateway}/blinds/{blind}/commands/{command}", ac.invokeBlindCommand).Methods("POST")

	protected.HandleFunc("/events", ec.serveServerSideEvent).Methods("GET")
	protected.HandleFunc("/websocket", ec.serveWebsocket).Methods("GET")

	apiRoot := mux.NewRouter()
	apiRoot.Handle("/auth/type", authenticationType(ap)).Methods("GET")
	apiRoot.Handle("/auth/check", ap.AuthenticationMiddleware(http.HandlerFunc(authenticationCheck))).Methods("GET")
	apiRoot.PathPrefix("/auth").Handler(ap.AuthenticationRouter())
	apiRoot.PathPrefix("/").Handler(ap.AuthenticationMiddleware(protected))

	return apiRoot
}

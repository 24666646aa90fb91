package exporter

import (
	"context"
	"sort"

	"github.com/shimmeringbee/veluxactive/state"
)

const (
	AccountUpdateMessageName = "AccountUpdate"
	GatewayUpdateMessageName = "GatewayUpdate"
	BlindUpdateMessageName   = "BlindUpdate"
)

type Message struct {
	Type string
}

func (m Message) MessageType() string {
	return m.Type
}

type AccountUpdateMessage struct {
	Message
	ExportedAccount
}

type GatewayUpdateMessage struct {
	Message
	Account string
	ExportedGateway
}

type BlindUpdateMessage struct {
	Message
	Account string
	Gateway string
	ExportedBlind
}

// EventExporter turns bus events into the messages pushed over the HTTP
// event stream and MQTT. Events referencing nodes that have since left the
// tree map to nothing.
type EventExporter struct {
	Accounts state.AccountMapper
}

// InitialEvents is the full current state as a message sequence, sent to a
// subscriber before live events so it never starts from a blank view.
func (e *EventExporter) InitialEvents(_ context.Context) ([]any, error) {
	var names []string
	accounts := e.Accounts.Accounts()

	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	var events []any
	for _, name := range names {
		events = append(events, AccountUpdateMessage{
			Message:         Message{Type: AccountUpdateMessageName},
			ExportedAccount: ExportAccount(accounts[name]),
		})
	}

	return events, nil
}

func (e *EventExporter) MapEvent(_ context.Context, event any) ([]any, error) {
	switch ev := event.(type) {
	case state.AccountOnline:
		return e.accountUpdate(ev.Account)
	case state.AccountOffline:
		return e.accountUpdate(ev.Account)
	case state.GatewayUpdated:
		account, found := e.Accounts.Account(ev.Account)
		if !found {
			return nil, nil
		}

		gw, found := account.Gateway(ev.Gateway)
		if !found {
			return nil, nil
		}

		return []any{GatewayUpdateMessage{
			Message:         Message{Type: GatewayUpdateMessageName},
			Account:         ev.Account,
			ExportedGateway: ExportGateway(gw),
		}}, nil
	case state.BlindUpdated:
		account, found := e.Accounts.Account(ev.Account)
		if !found {
			return nil, nil
		}

		gw, found := account.Gateway(ev.Gateway)
		if !found {
			return nil, nil
		}

		blind, found := gw.Blind(ev.Blind)
		if !found {
			return nil, nil
		}

		return []any{BlindUpdateMessage{
			Message:       Message{Type: BlindUpdateMessageName},
			Account:       ev.Account,
			Gateway:       ev.Gateway,
			ExportedBlind: ExportBlind(blind),
		}}, nil
	default:
		return nil, nil
	}
}

func (e *EventExporter) accountUpdate(name string) ([]any, error) {
	account, found := e.Accounts.Account(name)
	if !found {
		return nil, nil
	}

	return []any{AccountUpdateMessage{
		Message:         Message{Type: AccountUpdateMessageName},
		ExportedAccount: ExportAccount(account),
	}}, nil
}

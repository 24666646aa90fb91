package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/veluxactive/command"
	"github.com/shimmeringbee/veluxactive/interface/exporter"
	"github.com/shimmeringbee/veluxactive/state"
)

type Publisher func(ctx context.Context, topic string, payload []byte) error

type mqttError string

func (m mqttError) Error() string {
	return string(m)
}

const UnknownTopic = mqttError("unknown topic")
const UnknownAccount = mqttError("unknown account")

// Interface bridges the event bus and command invoker onto MQTT. Incoming
// command topics follow the HTTP route shape:
//
//	accounts/<account>/gateways/<gateway>/blinds/<blind>/commands/<name>/invoke
//
// with the command's JSON arguments as the payload. Outgoing state is
// published under the same hierarchy with a /state suffix, plus individual
// per-field topics when enabled.
type Interface struct {
	Publisher Publisher
	stop      chan bool

	AccountMux      state.AccountMapper
	EventSubscriber state.EventSubscriber
	CommandInvoker  command.Invoker

	Logger logwrap.Logger

	PublishStateOnConnect  bool
	PublishAggregatedState bool
	PublishIndividualState bool
}

func (i *Interface) IncomingMessage(ctx context.Context, topic string, payload []byte) error {
	topicParts := strings.Split(topic, "/")

	if len(topicParts) > 0 {
		switch topicParts[0] {
		case "accounts":
			return i.incomingMessageAccounts(ctx, topicParts[1:], payload)
		}
	}

	return fmt.Errorf("%w: %s", UnknownTopic, topic)
}

func (i *Interface) incomingMessageAccounts(ctx context.Context, topic []string, payload []byte) error {
	if len(topic) > 0 {
		if _, ok := i.AccountMux.Account(topic[0]); ok {
			return i.incomingMessageAccountsWith(ctx, topic[0], topic[1:], payload)
		}

		return fmt.Errorf("%w: %s", UnknownAccount, topic[0])
	}

	return fmt.Errorf("%w: %s", UnknownTopic, strings.Join(topic, "/"))
}

func (i *Interface) incomingMessageAccountsWith(ctx context.Context, account string, topic []string, payload []byte) error {
	if len(topic) == 7 && topic[0] == "gateways" && topic[2] == "blinds" && topic[4] == "commands" && topic[6] == "invoke" {
		cmd, err := command.Parse(topic[5], payload)
		if err != nil {
			return fmt.Errorf("unable to parse command from topic: %w", err)
		}

		if err := i.CommandInvoker(ctx, account, topic[1], topic[3], cmd); err != nil {
			return fmt.Errorf("unable to invoke command on blind: %w", err)
		}

		return nil
	}

	return fmt.Errorf("%w: %s", UnknownTopic, strings.Join(topic, "/"))
}

func EmptyPublisher(ctx context.Context, topic string, payload []byte) error {
	return nil
}

func (i *Interface) Connected(ctx context.Context, publisher Publisher) error {
	i.Publisher = publisher

	if i.PublishStateOnConnect {
		i.Logger.LogInfo(ctx, "MQTT connected, publishing current state of all accounts.")
		go i.publishAll()
	}

	return nil
}

func (i *Interface) Disconnected() {
	i.Publisher = EmptyPublisher
}

func (i *Interface) Start() {
	i.stop = make(chan bool, 1)

	ch := make(chan any, 100)
	i.EventSubscriber.Subscribe(ch)

	go i.handleEvents(ch)
}

func (i *Interface) Stop() {
	if i.stop != nil {
		i.stop <- true
	}
}

func (i *Interface) handleEvents(ch chan any) {
	for {
		select {
		case event := <-ch:
			i.serviceUpdateOnEvent(event)
		case <-i.stop:
			return
		}
	}
}

const MaximumServiceUpdateTime = 1 * time.Second

func (i *Interface) serviceUpdateOnEvent(e any) {
	ctx, cancel := context.WithTimeout(context.Background(), MaximumServiceUpdateTime)
	defer cancel()

	switch event := e.(type) {
	case state.AccountOnline:
		i.publishAccountHealth(ctx, event.Account)
	case state.AccountOffline:
		i.publishAccountHealth(ctx, event.Account)
	case state.GatewayUpdated:
		i.publishGateway(ctx, event.Account, event.Gateway)
	case state.BlindUpdated:
		i.publishBlind(ctx, event.Account, event.Gateway, event.Blind)
	}
}

func (i *Interface) publishAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for name, account := range i.AccountMux.Accounts() {
		i.publishAccountHealth(ctx, name)

		for gwId, gw := range account.Gateways() {
			i.publishGateway(ctx, name, gwId)

			for blindId := range gw.Blinds() {
				i.publishBlind(ctx, name, gwId, blindId)
			}
		}
	}
}

func (i *Interface) publishAccountHealth(ctx context.Context, name string) {
	account, found := i.AccountMux.Account(name)
	if !found {
		return
	}

	s := account.State()
	topic := fmt.Sprintf("accounts/%s", name)

	if err := i.Publisher(ctx, fmt.Sprintf("%s/online", topic), []byte(fmt.Sprintf("%v", s.Online))); err != nil {
		i.Logger.LogError(ctx, "Failed to publish account health to mqtt.", logwrap.Datum("account", name), logwrap.Err(err))
		return
	}

	if err := i.Publisher(ctx, fmt.Sprintf("%s/detail", topic), fmtString(s.Detail)); err != nil {
		i.Logger.LogError(ctx, "Failed to publish account detail to mqtt.", logwrap.Datum("account", name), logwrap.Err(err))
	}
}

func (i *Interface) publishGateway(ctx context.Context, name string, gwId string) {
	account, found := i.AccountMux.Account(name)
	if !found {
		return
	}

	gw, found := account.Gateway(gwId)
	if !found {
		return
	}

	exported := exporter.ExportGateway(gw)
	topic := fmt.Sprintf("accounts/%s/gateways/%s", name, gwId)

	if i.PublishAggregatedState {
		if err := i.publishJSON(ctx, fmt.Sprintf("%s/state", topic), exported); err != nil {
			i.Logger.LogError(ctx, "Failed to publish aggregated gateway state.", logwrap.Datum("gateway", gwId), logwrap.Err(err))
		}
	}

	if i.PublishIndividualState {
		if err := i.publishGatewayIndividual(ctx, topic, exported); err != nil {
			i.Logger.LogError(ctx, "Failed to publish individual gateway state.", logwrap.Datum("gateway", gwId), logwrap.Err(err))
		}
	}
}

func (i *Interface) publishGatewayIndividual(ctx context.Context, topic string, c exporter.ExportedGateway) error {
	if err := i.Publisher(ctx, fmt.Sprintf("%s/Reachable", topic), []byte(fmt.Sprintf("%v", c.Reachable))); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	if err := i.Publisher(ctx, fmt.Sprintf("%s/Raining", topic), []byte(fmt.Sprintf("%v", c.Raining))); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	return nil
}

func (i *Interface) publishBlind(ctx context.Context, name string, gwId string, blindId string) {
	account, found := i.AccountMux.Account(name)
	if !found {
		return
	}

	gw, found := account.Gateway(gwId)
	if !found {
		return
	}

	blind, found := gw.Blind(blindId)
	if !found {
		return
	}

	exported := exporter.ExportBlind(blind)
	topic := fmt.Sprintf("accounts/%s/gateways/%s/blinds/%s", name, gwId, blindId)

	if i.PublishAggregatedState {
		if err := i.publishJSON(ctx, fmt.Sprintf("%s/state", topic), exported); err != nil {
			i.Logger.LogError(ctx, "Failed to publish aggregated blind state.", logwrap.Datum("blind", blindId), logwrap.Err(err))
		}
	}

	if i.PublishIndividualState {
		if err := i.publishBlindIndividual(ctx, topic, exported); err != nil {
			i.Logger.LogError(ctx, "Failed to publish individual blind state.", logwrap.Datum("blind", blindId), logwrap.Err(err))
		}
	}
}

func (i *Interface) publishBlindIndividual(ctx context.Context, topic string, c exporter.ExportedBlind) error {
	if err := i.Publisher(ctx, fmt.Sprintf("%s/Position", topic), []byte(fmt.Sprintf("%d", c.Position))); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	if err := i.Publisher(ctx, fmt.Sprintf("%s/Moving", topic), []byte(fmt.Sprintf("%v", c.Moving))); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	if err := i.Publisher(ctx, fmt.Sprintf("%s/TargetPosition", topic), fmtPtrInt(c.TargetPosition)); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	if err := i.Publisher(ctx, fmt.Sprintf("%s/Reachable", topic), []byte(fmt.Sprintf("%v", c.Reachable))); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	if err := i.Publisher(ctx, fmt.Sprintf("%s/Battery", topic), fmtString(c.BatteryState)); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	return nil
}

func (i *Interface) publishJSON(ctx context.Context, topic string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err = i.Publisher(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	return nil
}

func fmtString(s string) []byte {
	if len(s) == 0 {
		return []byte("null")
	}

	return []byte(s)
}

func fmtPtrInt(s *int) []byte {
	if s == nil {
		return []byte("null")
	}

	return []byte(fmt.Sprintf("%d", *s))
}

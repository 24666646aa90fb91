package command

import (
	"context"
	"fmt"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/veluxactive/state"
)

// Cloud is the write side of the velux client consumed by the dispatcher.
type Cloud interface {
	SetPosition(ctx context.Context, position int, blindId string, gatewayId string, homeId string) error
	Stop(ctx context.Context, blindId string, gatewayId string, homeId string) error
}

// Invoker routes a command to the dispatcher owning the named account; the
// interfaces depend on this rather than on per-account dispatchers.
type Invoker func(ctx context.Context, account string, gatewayId string, blindId string, cmd Command) error

// Dispatcher executes commands against one account's blinds. Moves are
/// optimistic: the blind is marked moving at its target before the cloud write
// is attempted and a failed write is reported to the caller without retry or
// rollback, leaving confirmation to the poll cycle.
type Dispatcher struct {
	account   *state.Account
	cloud     Cloud
	homeId    func() string
	refresh   func()
	publisher state.EventPublisher
	logger    logwrap.Logger
}

func NewDispatcher(account *state.Account, cloud Cloud, homeId func() string, refresh func(), publisher state.EventPublisher, l logwrap.Logger) *Dispatcher {
	return &Dispatcher{
		account:   account,
		cloud:     cloud,
		homeId:    homeId,
		refresh:   refresh,
		publisher: publisher,
		logger:    l,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, gatewayId string, blindId string, cmd Command) error {
	gw, found := d.account.Gateway(gatewayId)
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownGateway, gatewayId)
	}

	blind, found := gw.Blind(blindId)
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownBlind, blindId)
	}

	switch c := cmd.(type) {
	case Refresh:
		if d.refresh != nil {
			d.refresh()
		}
		return nil
	case Up:
		return d.moveTo(ctx, gw, blind, 100)
	case Down:
		return d.moveTo(ctx, gw, blind, 0)
	case SetPosition:
		return d.moveTo(ctx, gw, blind, 100-c.Position)
	case Stop:
		return d.stop(ctx, gw, blind)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (d *Dispatcher) moveTo(ctx context.Context, gw *state.Gateway, blind *state.Blind, cloudTarget int) error {
	blind.BeginMovement(cloudTarget)
	d.publisher.Publish(state.BlindUpdated{Account: d.account.Id(), Gateway: gw.Id(), Blind: blind.Id()})

	if err := d.cloud.SetPosition(ctx, cloudTarget, blind.Id(), gw.Id(), d.homeId()); err != nil {
		d.logger.LogError(ctx, "Blind move failed.", logwrap.Datum("blind", blind.Id()), logwrap.Err(err))
		return err
	}

	return nil
}

// stop clears movement tracking locally even when the cloud write fails, so
// the next poll's position is taken rather than suppressed against a target
// the blind may never reach.
func (d *Dispatcher) stop(ctx context.Context, gw *state.Gateway, blind *state.Blind) error {
	err := d.cloud.Stop(ctx, blind.Id(), gw.Id(), d.homeId())
	if err != nil {
		d.logger.LogError(ctx, "Blind stop failed.", logwrap.Datum("blind", blind.Id()), logwrap.Err(err))
	}

	blind.EndMovement()
	d.publisher.Publish(state.BlindUpdated{Account: d.account.Id(), Gateway: gw.Id(), Blind: blind.Id()})

	return err
}

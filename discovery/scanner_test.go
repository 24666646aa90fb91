package discovery

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/veluxactive/state"
	"github.com/shimmeringbee/veluxactive/velux"
	"github.com/stretchr/testify/assert"
)

type staticSource struct {
	modules []velux.Module
	err     error
	calls   int
}

func (s *staticSource) Modules(context.Context) ([]velux.Module, error) {
	s.calls++
	return s.modules, s.err
}

type capturePublisher struct {
	events []any
}

func (c *capturePublisher) Publish(e any) {
	c.events = append(c.events, e)
}

func testLogger() logwrap.Logger {
	return logwrap.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))
}

func onlineAccount() *state.Account {
	a := state.NewAccount("acct")
	a.SetOnline()
	return a
}

func enabled() bool  { return true }
func disabled() bool { return false }

func TestScanner_Scan(t *testing.T) {
	t.Run("an unattached gateway is proposed with its identity metadata", func(t *testing.T) {
		account := onlineAccount()
		source := &staticSource{modules: []velux.Module{
			{Id: "gw-1", Type: velux.ModuleTypeGateway, FirmwareRevisionNetatmo: "202", HardwareVersion: "5"},
		}}
		pub := &capturePublisher{}

		s := NewScanner(account, source, pub, enabled, testLogger(), DefaultInitialDelay, DefaultInterval)
		assert.NoError(t, s.Scan(context.Background()))

		assert.Equal(t, []any{
			state.GatewayFound{
				Account:                 "acct",
				Gateway:                 "gw-1",
				Identifier:              "acct/gw-1",
				FirmwareRevisionNetatmo: "202",
				HardwareVersion:         "5",
			},
		}, pub.events)
	})

	t.Run("a blind is only proposed once its gateway is attached", func(t *testing.T) {
		account := onlineAccount()
		source := &staticSource{modules: []velux.Module{
			{Id: "gw-1", Type: velux.ModuleTypeGateway},
			{Id: "blind-1", Type: velux.ModuleTypeBlind, Bridge: "gw-1", Name: "Bedroom", Manufacturer: "Velux"},
		}}
		pub := &capturePublisher{}
		s := NewScanner(account, source, pub, enabled, testLogger(), DefaultInitialDelay, DefaultInterval)

		assert.NoError(t, s.Scan(context.Background()))
		assert.Len(t, pub.events, 1, "first scan proposes the gateway alone")
		assert.IsType(t, state.GatewayFound{}, pub.events[0])

		account.AttachGateway("gw-1")
		pub.events = nil

		assert.NoError(t, s.Scan(context.Background()))
		assert.Equal(t, []any{
			state.BlindFound{
				Account:      "acct",
				Gateway:      "gw-1",
				Blind:        "blind-1",
				Identifier:   "acct/gw-1/blind-1",
				Name:         "Bedroom",
				Manufacturer: "Velux",
			},
		}, pub.events)
	})

	t.Run("already attached modules are not proposed again", func(t *testing.T) {
		account := onlineAccount()
		account.AttachGateway("gw-1").AttachBlind("blind-1")

		source := &staticSource{modules: []velux.Module{
			{Id: "gw-1", Type: velux.ModuleTypeGateway},
			{Id: "blind-1", Type: velux.ModuleTypeBlind, Bridge: "gw-1"},
		}}
		pub := &capturePublisher{}

		s := NewScanner(account, source, pub, enabled, testLogger(), DefaultInitialDelay, DefaultInterval)
		assert.NoError(t, s.Scan(context.Background()))

		assert.Empty(t, pub.events)
	})

	t.Run("blinds are skipped entirely when no gateway is attached", func(t *testing.T) {
		account := onlineAccount()
		source := &staticSource{modules: []velux.Module{
			{Id: "blind-1", Type: velux.ModuleTypeBlind, Bridge: "gw-1"},
		}}
		pub := &capturePublisher{}

		s := NewScanner(account, source, pub, enabled, testLogger(), DefaultInitialDelay, DefaultInterval)
		assert.NoError(t, s.Scan(context.Background()))

		assert.Empty(t, pub.events)
	})

	t.Run("a scan while the account is offline does nothing, without error", func(t *testing.T) {
		account := state.NewAccount("acct")
		source := &staticSource{}

		s := NewScanner(account, source, &capturePublisher{}, enabled, testLogger(), DefaultInitialDelay, DefaultInterval)
		assert.NoError(t, s.Scan(context.Background()))

		assert.Zero(t, source.calls)
	})

	t.Run("a source failure propagates from an on-demand scan", func(t *testing.T) {
		account := onlineAccount()
		source := &staticSource{err: velux.ErrTransport}

		s := NewScanner(account, source, &capturePublisher{}, enabled, testLogger(), DefaultInitialDelay, DefaultInterval)
		assert.ErrorIs(t, s.Scan(context.Background()), velux.ErrTransport)
	})
}

func TestScanner_BackgroundScan(t *testing.T) {
	t.Run("the configuration gate suppresses background scans only", func(t *testing.T) {
		account := onlineAccount()
		source := &staticSource{}

		s := NewScanner(account, source, &capturePublisher{}, disabled, testLogger(), DefaultInitialDelay, DefaultInterval)

		s.BackgroundScan(context.Background())
		assert.Zero(t, source.calls)

		assert.NoError(t, s.Scan(context.Background()))
		assert.Equal(t, 1, source.calls)
	})

	t.Run("start and stop control the schedule", func(t *testing.T) {
		account := onlineAccount()
		s := NewScanner(account, &staticSource{}, &capturePublisher{}, enabled, testLogger(), DefaultInitialDelay, DefaultInterval)

		assert.False(t, s.BackgroundRunning())
		s.StartBackground()
		assert.True(t, s.BackgroundRunning())
		s.StopBackground()
		assert.False(t, s.BackgroundRunning())
	})
}

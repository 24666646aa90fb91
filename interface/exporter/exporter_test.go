package exporter

import (
	"testing"

	"github.com/shimmeringbee/veluxactive/state"
	"github.com/shimmeringbee/veluxactive/velux"
	"github.com/stretchr/testify/assert"
)

func TestExportAccount(t *testing.T) {
	t.Run("the full hierarchy exports with sorted children", func(t *testing.T) {
		a := state.NewAccount("acct")
		a.SetOnline()

		gwB := a.AttachGateway("gw-b")
		gwA := a.AttachGateway("gw-a")
		gwA.AttachBlind("blind-2")
		gwA.AttachBlind("blind-1")
		_ = gwB

		exported := ExportAccount(a)

		assert.Equal(t, "acct", exported.Identifier)
		assert.True(t, exported.Online)
		assert.Empty(t, exported.Detail)

		assert.Len(t, exported.Gateways, 2)
		assert.Equal(t, "gw-a", exported.Gateways[0].Identifier)
		assert.Equal(t, "gw-b", exported.Gateways[1].Identifier)

		blinds := exported.Gateways[0].Blinds
		assert.Len(t, blinds, 2)
		assert.Equal(t, "blind-1", blinds[0].Identifier)
		assert.Equal(t, "blind-2", blinds[1].Identifier)
	})

	t.Run("an offline account carries its reason", func(t *testing.T) {
		a := state.NewAccount("acct")
		a.SetOffline("auth failed")

		exported := ExportAccount(a)
		assert.False(t, exported.Online)
		assert.Equal(t, "auth failed", exported.Detail)
	})
}

func TestExportBlind(t *testing.T) {
	newBlind := func() *state.Blind {
		return state.NewAccount("acct").AttachGateway("gw-1").AttachBlind("blind-1")
	}

	t.Run("position is exported on the external scale", func(t *testing.T) {
		b := newBlind()
		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 30, Reachable: true, BatteryState: "full", Name: "Bedroom"})

		exported := ExportBlind(b)

		assert.Equal(t, 70, exported.Position)
		assert.Equal(t, "Bedroom", exported.Name)
		assert.True(t, exported.Reachable)
		assert.Equal(t, "full", exported.BatteryState)
		assert.False(t, exported.Moving)
		assert.Nil(t, exported.TargetPosition)
	})

	t.Run("an in-flight movement exports its external target", func(t *testing.T) {
		b := newBlind()
		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 30})
		b.BeginMovement(100)

		exported := ExportBlind(b)

		assert.True(t, exported.Moving)
		if assert.NotNil(t, exported.TargetPosition) {
			assert.Equal(t, 0, *exported.TargetPosition)
		}
	})
}

func TestExportGateway(t *testing.T) {
	t.Run("gateway status fields carry through", func(t *testing.T) {
		gw := state.NewAccount("acct").AttachGateway("gw-1")
		gw.UpdateFromModule(velux.Module{
			Id:                      "gw-1",
			Reachable:               true,
			IsRaining:               true,
			FirmwareRevisionNetatmo: "202",
			HardwareVersion:         "5",
		})

		exported := ExportGateway(gw)

		assert.True(t, exported.Reachable)
		assert.True(t, exported.Raining)
		assert.Equal(t, "202", exported.FirmwareRevisionNetatmo)
		assert.Equal(t, "5", exported.HardwareVersion)
		assert.Empty(t, exported.Blinds)
	})
}

package state

import (
	"testing"

	"github.com/shimmeringbee/veluxactive/velux"
	"github.com/stretchr/testify/assert"
)

func TestAccount(t *testing.T) {
	t.Run("attached gateways are available via lookup and listing", func(t *testing.T) {
		a := NewAccount("acct")

		gw := a.AttachGateway("gw-1")
		assert.Equal(t, "gw-1", gw.Id())
		assert.Equal(t, "acct", gw.AccountId())

		found, ok := a.Gateway("gw-1")
		assert.True(t, ok)
		assert.Equal(t, gw, found)

		assert.Len(t, a.Gateways(), 1)
	})

	t.Run("attaching an already attached gateway returns the existing node", func(t *testing.T) {
		a := NewAccount("acct")

		gw := a.AttachGateway("gw-1")
		gw.AttachBlind("blind-1")

		again := a.AttachGateway("gw-1")
		assert.Equal(t, gw, again)
		assert.Len(t, again.Blinds(), 1)
	})

	t.Run("detaching a gateway removes it and its blinds from the tree", func(t *testing.T) {
		a := NewAccount("acct")

		gw := a.AttachGateway("gw-1")
		gw.AttachBlind("blind-1")

		a.DetachGateway("gw-1")

		_, ok := a.Gateway("gw-1")
		assert.False(t, ok)
	})

	t.Run("health transitions report change only when the state differs", func(t *testing.T) {
		a := NewAccount("acct")

		assert.False(t, a.State().Online)

		assert.True(t, a.SetOnline())
		assert.False(t, a.SetOnline())
		assert.True(t, a.State().Online)

		assert.True(t, a.SetOffline("timeout"))
		assert.False(t, a.SetOffline("timeout"))
		assert.True(t, a.SetOffline("auth failed"))
		assert.Equal(t, "auth failed", a.State().Detail)
	})
}

func TestGateway_UpdateFromModule(t *testing.T) {
	t.Run("gateway status fields are replaced from a polled module", func(t *testing.T) {
		a := NewAccount("acct")
		gw := a.AttachGateway("gw-1")

		gw.UpdateFromModule(velux.Module{
			Id:                      "gw-1",
			Type:                    velux.ModuleTypeGateway,
			Reachable:               true,
			IsRaining:               true,
			FirmwareRevisionNetatmo: "202",
			HardwareVersion:         "5",
		})

		s := gw.State()
		assert.True(t, s.Reachable)
		assert.True(t, s.Raining)
		assert.Equal(t, "202", s.FirmwareRevisionNetatmo)
		assert.Equal(t, "5", s.HardwareVersion)
	})
}

func TestBlind(t *testing.T) {
	newBlind := func() *Blind {
		a := NewAccount("acct")
		return a.AttachGateway("gw-1").AttachBlind("blind-1")
	}

	t.Run("reported position is the inverse of the cloud position", func(t *testing.T) {
		b := newBlind()

		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 30, Reachable: true, BatteryState: "full"})

		assert.Equal(t, 70, b.Position())
		assert.True(t, b.State().Reachable)
		assert.Equal(t, "full", b.State().BatteryState)
	})

	t.Run("position updates are suppressed while a movement is in flight", func(t *testing.T) {
		b := newBlind()
		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 30})

		b.BeginMovement(100)

		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 55, BatteryState: "medium"})

		assert.Equal(t, 70, b.Position(), "stale poll position must not flicker through")
		assert.Equal(t, "medium", b.State().BatteryState, "battery still tracks while moving")
		assert.True(t, b.State().Movement.Moving())
	})

	t.Run("a poll observing the target completes the movement", func(t *testing.T) {
		b := newBlind()
		b.BeginMovement(100)

		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 100})

		assert.False(t, b.State().Movement.Moving())
		assert.Equal(t, 0, b.Position())
	})

	t.Run("ending a movement leaves the last reported position in place", func(t *testing.T) {
		b := newBlind()
		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 30})
		b.BeginMovement(0)

		b.EndMovement()

		assert.False(t, b.State().Movement.Moving())
		assert.Equal(t, 70, b.Position())
	})

	t.Run("names are backfilled but never blanked by a nameless status module", func(t *testing.T) {
		b := newBlind()
		b.UpdateFromModule(velux.Module{Id: "blind-1", Name: "Bedroom", Manufacturer: "Velux"})
		b.UpdateFromModule(velux.Module{Id: "blind-1", CurrentPosition: 10})

		assert.Equal(t, "Bedroom", b.State().Name)
		assert.Equal(t, "Velux", b.State().Manufacturer)
	})
}

func TestMovement(t *testing.T) {
	t.Run("idle carries no target", func(t *testing.T) {
		_, moving := Idle().Target()
		assert.False(t, moving)
	})

	t.Run("moving carries its target", func(t *testing.T) {
		target, moving := MovingTo(40).Target()
		assert.True(t, moving)
		assert.Equal(t, 40, target)
	})
}

func TestAccountMux(t *testing.T) {
	t.Run("added accounts are available by name until removed", func(t *testing.T) {
		m := NewAccountMux()
		a := NewAccount("acct")

		m.Add("acct", a)

		found, ok := m.Account("acct")
		assert.True(t, ok)
		assert.Equal(t, a, found)
		assert.Len(t, m.Accounts(), 1)

		m.Remove("acct")
		_, ok = m.Account("acct")
		assert.False(t, ok)
	})
}

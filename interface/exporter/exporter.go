package exporter

import (
	"sort"

	"github.com/shimmeringbee/veluxactive/state"
)

// Exported representations shared by the HTTP and MQTT interfaces. Positions
// are on the external scale, 0 fully closed through 100 fully open; the cloud
// scale never leaves the state layer.

type ExportedAccount struct {
	Identifier string            `json:"identifier"`
	Online     bool              `json:"online"`
	Detail     string            `json:"detail,omitempty"`
	Gateways   []ExportedGateway `json:"gateways"`
}

type ExportedGateway struct {
	Identifier                 string          `json:"identifier"`
	Reachable                  bool            `json:"reachable"`
	Raining                    bool            `json:"raining"`
	FirmwareRevisionNetatmo    string          `json:"firmware_revision_netatmo,omitempty"`
	FirmwareRevisionThirdparty string          `json:"firmware_revision_thirdparty,omitempty"`
	HardwareVersion            string          `json:"hardware_version,omitempty"`
	Blinds                     []ExportedBlind `json:"blinds"`
}

type ExportedBlind struct {
	Identifier       string `json:"identifier"`
	Name             string `json:"name,omitempty"`
	Manufacturer     string `json:"manufacturer,omitempty"`
	FirmwareRevision string `json:"firmware_revision,omitempty"`
	Reachable        bool   `json:"reachable"`
	BatteryState     string `json:"battery_state,omitempty"`
	Position         int    `json:"position"`
	Moving           bool   `json:"moving"`
	TargetPosition   *int   `json:"target_position,omitempty"`
}

func ExportAccount(a *state.Account) ExportedAccount {
	s := a.State()

	gateways := []ExportedGateway{}
	for _, gw := range a.Gateways() {
		gateways = append(gateways, ExportGateway(gw))
	}
	sort.Slice(gateways, func(i, j int) bool {
		return gateways[i].Identifier < gateways[j].Identifier
	})

	return ExportedAccount{
		Identifier: a.Id(),
		Online:     s.Online,
		Detail:     s.Detail,
		Gateways:   gateways,
	}
}

func ExportGateway(gw *state.Gateway) ExportedGateway {
	s := gw.State()

	blinds := []ExportedBlind{}
	for _, b := range gw.Blinds() {
		blinds = append(blinds, ExportBlind(b))
	}
	sort.Slice(blinds, func(i, j int) bool {
		return blinds[i].Identifier < blinds[j].Identifier
	})

	return ExportedGateway{
		Identifier:                 gw.Id(),
		Reachable:                  s.Reachable,
		Raining:                    s.Raining,
		FirmwareRevisionNetatmo:    s.FirmwareRevisionNetatmo,
		FirmwareRevisionThirdparty: s.FirmwareRevisionThirdparty,
		HardwareVersion:            s.HardwareVersion,
		Blinds:                     blinds,
	}
}

func ExportBlind(b *state.Blind) ExportedBlind {
	s := b.State()

	exported := ExportedBlind{
		Identifier:       b.Id(),
		Name:             s.Name,
		Manufacturer:     s.Manufacturer,
		FirmwareRevision: s.FirmwareRevision,
		Reachable:        s.Reachable,
		BatteryState:     s.BatteryState,
		Position:         100 - s.Position,
	}

	if target, moving := s.Movement.Target(); moving {
		externalTarget := 100 - target
		exported.Moving = true
		exported.TargetPosition = &externalTarget
	}

	return exported
}

package state

// Events published to the bus by the reconciler, dispatcher and discovery
// scanner. Interfaces and the onboarding registry subscribe.

type AccountOnline struct {
	Account string
}

type AccountOffline struct {
	Account string
	Reason  string
}

type GatewayUpdated struct {
	Account string
	Gateway string
}

type BlindUpdated struct {
	Account string
	Gateway string
	Blind   string
}

// GatewayFound proposes a cloud gateway module not yet attached to the tree.
// Identifier is stable across scans; Gateway is the representation key used
// for deduplication.
type GatewayFound struct {
	Account    string
	Gateway    string
	Identifier string

	FirmwareRevisionNetatmo    string
	FirmwareRevisionThirdparty string
	HardwareVersion            string
}

// BlindFound proposes a cloud blind module whose owning gateway is attached
// but which is not yet attached itself. Blind is the representation key.
type BlindFound struct {
	Account    string
	Gateway    string
	Blind      string
	Identifier string

	Name             string
	FirmwareRevision string
	Manufacturer     string
}

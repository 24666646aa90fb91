package velux

const (
	// ModuleTypeGateway is the cloud type tag for a gateway hub.
	ModuleTypeGateway = "NXG"
	// ModuleTypeBlind is the cloud type tag for a blind actuator.
	ModuleTypeBlind = "NXO"
)

// Module is the cloud's flat wire record for either a gateway or a blind,
// merged from the homesdata and homestatus responses. Blinds reference their
// owning gateway through Bridge. CurrentPosition and TargetPosition are on the
// cloud scale, 0 closed through 100 open.
type Module struct {
	Id                         string `json:"id"`
	Name                       string `json:"name,omitempty"`
	Type                       string `json:"type"`
	Manufacturer               string `json:"manufacturer,omitempty"`
	Reachable                  bool   `json:"reachable"`
	Bridge                     string `json:"bridge,omitempty"`
	FirmwareRevision           string `json:"firmware_revision,omitempty"`
	FirmwareRevisionNetatmo    string `json:"firmware_revision_netatmo,omitempty"`
	FirmwareRevisionThirdparty string `json:"firmware_revision_thirdparty,omitempty"`
	HardwareVersion            string `json:"hardware_version,omitempty"`
	IsRaining                  bool   `json:"is_raining"`
	BatteryState               string `json:"battery_state,omitempty"`
	CurrentPosition            int    `json:"current_position"`
	TargetPosition             int    `json:"target_position"`
}

// Home is the account's top level container of modules. The homesdata
// response carries module names, the homestatus response carries live state.
type Home struct {
	Id      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Modules []Module `json:"modules"`
}

type responseBody struct {
	Home  Home   `json:"home"`
	Homes []Home `json:"homes"`
}

type response struct {
	Body   responseBody `json:"body"`
	Status string       `json:"status"`
}

type setStateModule struct {
	Id             string `json:"id"`
	Bridge         string `json:"bridge,omitempty"`
	TargetPosition *int   `json:"target_position,omitempty"`
	StopMovements  string `json:"stop_movements,omitempty"`
}

type setStateHome struct {
	Id      string           `json:"id"`
	Modules []setStateModule `json:"modules"`
}

type setStateRequest struct {
	Home setStateHome `json:"home"`
}

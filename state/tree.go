package state

import (
	"sync"

	"github.com/shimmeringbee/veluxactive/velux"
)

// The device tree is the in-memory Account -> Gateway -> Blind hierarchy.
// Membership mutations come from the onboarding registry, field updates from
// the reconciler and the command dispatcher, so child maps are guarded by
// RWMutexes and node state is replaced as a whole struct rather than mutated
// field by field.

// AccountState is the account's health as last decided by the reconciler.
type AccountState struct {
	Online bool
	Detail string
}

type Account struct {
	id string

	lock     sync.RWMutex
	state    AccountState
	gateways map[string]*Gateway
}

func NewAccount(id string) *Account {
	return &Account{
		id:       id,
		state:    AccountState{Detail: "connecting to velux active"},
		gateways: map[string]*Gateway{},
	}
}

func (a *Account) Id() string {
	return a.id
}

func (a *Account) State() AccountState {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.state
}

// SetOnline reports whether the health actually transitioned.
func (a *Account) SetOnline() bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	changed := !a.state.Online
	a.state = AccountState{Online: true}
	return changed
}

// SetOffline reports whether the health or its reason actually changed.
func (a *Account) SetOffline(reason string) bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	changed := a.state.Online || a.state.Detail != reason
	a.state = AccountState{Online: false, Detail: reason}
	return changed
}

// AttachGateway adds a gateway node under the account, returning the
// existing node if the id is already attached.
func (a *Account) AttachGateway(id string) *Gateway {
	a.lock.Lock()
	defer a.lock.Unlock()

	if gw, found := a.gateways[id]; found {
		return gw
	}

	gw := &Gateway{
		id:        id,
		accountId: a.id,
		blinds:    map[string]*Blind{},
	}
	a.gateways[id] = gw
	return gw
}

// DetachGateway removes the gateway and, through it, all of its blinds.
func (a *Account) DetachGateway(id string) {
	a.lock.Lock()
	defer a.lock.Unlock()

	delete(a.gateways, id)
}

func (a *Account) Gateway(id string) (*Gateway, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	gw, found := a.gateways[id]
	return gw, found
}

func (a *Account) Gateways() map[string]*Gateway {
	a.lock.RLock()
	defer a.lock.RUnlock()

	result := make(map[string]*Gateway, len(a.gateways))
	for k, v := range a.gateways {
		result[k] = v
	}
	return result
}

// GatewayState is the live status of a hub, replaced wholesale on each poll.
type GatewayState struct {
	Reachable                  bool
	Raining                    bool
	FirmwareRevisionNetatmo    string
	FirmwareRevisionThirdparty string
	HardwareVersion            string
}

type Gateway struct {
	id        string
	accountId string

	lock   sync.RWMutex
	state  GatewayState
	blinds map[string]*Blind
}

func (g *Gateway) Id() string {
	return g.id
}

// AccountId is the explicit parent reference, resolved through the account's
// lookup API rather than held as a pointer.
func (g *Gateway) AccountId() string {
	return g.accountId
}

func (g *Gateway) State() GatewayState {
	g.lock.RLock()
	defer g.lock.RUnlock()

	return g.state
}

func (g *Gateway) SetState(s GatewayState) {
	g.lock.Lock()
	defer g.lock.Unlock()

	g.state = s
}

// UpdateFromModule replaces the gateway's live status from a polled module.
func (g *Gateway) UpdateFromModule(m velux.Module) {
	g.SetState(GatewayState{
		Reachable:                  m.Reachable,
		Raining:                    m.IsRaining,
		FirmwareRevisionNetatmo:    m.FirmwareRevisionNetatmo,
		FirmwareRevisionThirdparty: m.FirmwareRevisionThirdparty,
		HardwareVersion:            m.HardwareVersion,
	})
}

func (g *Gateway) AttachBlind(id string) *Blind {
	g.lock.Lock()
	defer g.lock.Unlock()

	if b, found := g.blinds[id]; found {
		return b
	}

	b := &Blind{
		id:        id,
		gatewayId: g.id,
	}
	g.blinds[id] = b
	return b
}

func (g *Gateway) DetachBlind(id string) {
	g.lock.Lock()
	defer g.lock.Unlock()

	delete(g.blinds, id)
}

func (g *Gateway) Blind(id string) (*Blind, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()

	b, found := g.blinds[id]
	return b, found
}

func (g *Gateway) Blinds() map[string]*Blind {
	g.lock.RLock()
	defer g.lock.RUnlock()

	result := make(map[string]*Blind, len(g.blinds))
	for k, v := range g.blinds {
		result[k] = v
	}
	return result
}

// BlindState is a blind's full local state. Position is on the cloud scale
// and holds the last position reported while not suppressed by movement
// tracking; readers wanting the external scale use Blind.Position.
type BlindState struct {
	Name             string
	Manufacturer     string
	FirmwareRevision string
	Reachable        bool
	BatteryState     string
	Position         int
	Movement         Movement
}

type Blind struct {
	id        string
	gatewayId string

	lock  sync.RWMutex
	state BlindState
}

func (b *Blind) Id() string {
	return b.id
}

func (b *Blind) GatewayId() string {
	return b.gatewayId
}

func (b *Blind) State() BlindState {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.state
}

func (b *Blind) SetState(s BlindState) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.state = s
}

// Position is the externally reported position: 0 open through 100 closed,
// the inverse of the cloud scale.
func (b *Blind) Position() int {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return 100 - b.state.Position
}

// BeginMovement records an optimistic in-flight move toward a cloud scale
// target. Reported position updates are suppressed until a poll observes the
// target or the movement is ended.
func (b *Blind) BeginMovement(target int) {
	b.lock.Lock()
	defer b.lock.Unlock()

	ns := b.state
	ns.Movement = MovingTo(target)
	b.state = ns
}

// EndMovement clears movement tracking immediately, as a stop command does.
func (b *Blind) EndMovement() {
	b.lock.Lock()
	defer b.lock.Unlock()

	ns := b.state
	ns.Movement = Idle()
	b.state = ns
}

// UpdateFromModule applies a polled status module. Reachability and battery
// are always taken; the reported position is only taken while idle, or when
// the poll confirms the in-flight target, which also completes the movement.
func (b *Blind) UpdateFromModule(m velux.Module) {
	b.lock.Lock()
	defer b.lock.Unlock()

	ns := b.state
	ns.Reachable = m.Reachable
	ns.BatteryState = m.BatteryState

	if m.Name != "" {
		ns.Name = m.Name
	}
	if m.Manufacturer != "" {
		ns.Manufacturer = m.Manufacturer
	}
	if m.FirmwareRevision != "" {
		ns.FirmwareRevision = m.FirmwareRevision
	}

	if target, moving := ns.Movement.Target(); moving {
		if m.CurrentPosition == target {
			ns.Movement = Idle()
			ns.Position = m.CurrentPosition
		}
	} else {
		ns.Position = m.CurrentPosition
	}

	b.state = ns
}

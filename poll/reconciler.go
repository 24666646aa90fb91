package poll

import (
	"context"
	"sync"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/veluxactive/state"
	"github.com/shimmeringbee/veluxactive/velux"
)

const DefaultInitialDelay = 3 * time.Second
const DefaultInterval = 40 * time.Second

// Cloud is the read side of the velux client consumed by the reconciler.
type Cloud interface {
	HomeTopology(ctx context.Context) (velux.Home, error)
	HomeStatus(ctx context.Context, homeId string) ([]velux.Module, error)
}

// Reconciler keeps the account's device tree current with the cloud. Each
// cycle merges the topology and status views, applies gateway updates before
// blind updates and transitions the account's health. A failed cycle leaves
// every node untouched and never aborts the schedule.
type Reconciler struct {
	account   *state.Account
	cloud     Cloud
	publisher state.EventPublisher
	logger    logwrap.Logger
	task      *Task

	lock        sync.RWMutex
	homeId      string
	lastModules []velux.Module
}

func NewReconciler(account *state.Account, cloud Cloud, publisher state.EventPublisher, l logwrap.Logger, initialDelay time.Duration, interval time.Duration) *Reconciler {
	r := &Reconciler{
		account:   account,
		cloud:     cloud,
		publisher: publisher,
		logger:    l,
	}
	r.task = NewTask(initialDelay, interval, r.poll)
	return r
}

func (r *Reconciler) Start() {
	r.task.Start()
}

func (r *Reconciler) Stop() {
	r.task.Stop()
}

func (r *Reconciler) Running() bool {
	return r.task.Running()
}

// TriggerNow requests a poll ahead of schedule, used after command writes.
func (r *Reconciler) TriggerNow() {
	r.task.Trigger()
}

// HomeId is the home cached from the most recent topology fetch; empty until
// the first successful fetch.
func (r *Reconciler) HomeId() string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.homeId
}

// Modules fetches the topology and status views and merges them, copying the
// name of each topology module onto the matching status module. The home id
// and the merged list are cached for command writes and discovery.
func (r *Reconciler) Modules(ctx context.Context) ([]velux.Module, error) {
	home, err := r.cloud.HomeTopology(ctx)
	if err != nil {
		return nil, err
	}

	modules, err := r.cloud.HomeStatus(ctx, home.Id)
	if err != nil {
		return nil, err
	}

	for i := range modules {
		for _, tm := range home.Modules {
			if tm.Id == modules[i].Id {
				modules[i].Name = tm.Name
			}
		}
	}

	r.lock.Lock()
	r.homeId = home.Id
	r.lastModules = append([]velux.Module(nil), modules...)
	r.lock.Unlock()

	return modules, nil
}

// LastModules returns the snapshot from the most recent successful merge,
// letting discovery avoid a redundant round trip.
func (r *Reconciler) LastModules() []velux.Module {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return append([]velux.Module(nil), r.lastModules...)
}

func (r *Reconciler) poll(ctx context.Context) {
	r.logger.LogDebug(ctx, "Polling cloud for module status.")

	modules, err := r.Modules(ctx)
	if err != nil {
		r.logger.LogError(ctx, "Poll failed, marking account offline.", logwrap.Err(err))

		if r.account.SetOffline(err.Error()) {
			r.publisher.Publish(state.AccountOffline{Account: r.account.Id(), Reason: err.Error()})
		}
		return
	}

	// Gateways first, so blind lookups in this same cycle see the
	// freshest gateway state.
	for _, m := range modules {
		if m.Type != velux.ModuleTypeGateway {
			continue
		}

		gw, found := r.account.Gateway(m.Id)
		if !found {
			r.logger.LogDebug(ctx, "Skipping gateway module, not onboarded.", logwrap.Datum("gateway", m.Id))
			continue
		}

		gw.UpdateFromModule(m)
		r.publisher.Publish(state.GatewayUpdated{Account: r.account.Id(), Gateway: m.Id})
	}

	for _, m := range modules {
		if m.Type != velux.ModuleTypeBlind {
			continue
		}

		gw, found := r.account.Gateway(m.Bridge)
		if !found {
			r.logger.LogDebug(ctx, "Skipping blind module, bridge not onboarded.", logwrap.Datum("blind", m.Id), logwrap.Datum("bridge", m.Bridge))
			continue
		}

		blind, found := gw.Blind(m.Id)
		if !found {
			r.logger.LogDebug(ctx, "Skipping blind module, not onboarded.", logwrap.Datum("blind", m.Id))
			continue
		}

		blind.UpdateFromModule(m)
		r.publisher.Publish(state.BlindUpdated{Account: r.account.Id(), Gateway: m.Bridge, Blind: m.Id})
	}

	if r.account.SetOnline() {
		r.logger.LogInfo(ctx, "Account online.")
		r.publisher.Publish(state.AccountOnline{Account: r.account.Id()})
	}
}

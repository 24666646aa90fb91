package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/veluxactive/poll"
	"github.com/shimmeringbee/veluxactive/state"
	"github.com/shimmeringbee/veluxactive/velux"
)

const DefaultInitialDelay = 10 * time.Second
const DefaultInterval = 300 * time.Second

// ModuleSource supplies the merged module view a scan works from, usually the
// reconciler so discovery shares its topology fetch.
type ModuleSource interface {
	Modules(ctx context.Context) ([]velux.Module, error)
}

// Scanner proposes cloud modules that are not yet in the device tree. It
// never attaches anything itself; GatewayFound and BlindFound events go to
// the bus and the onboarding registry decides. Blinds whose gateway is not
// attached are held back until a later scan sees the gateway on the tree, so
// proposals always arrive gateway first.
type Scanner struct {
	account   *state.Account
	source    ModuleSource
	publisher state.EventPublisher
	enabled   func() bool
	logger    logwrap.Logger
	task      *poll.Task
}

func NewScanner(account *state.Account, source ModuleSource, publisher state.EventPublisher, enabled func() bool, l logwrap.Logger, initialDelay time.Duration, interval time.Duration) *Scanner {
	s := &Scanner{
		account:   account,
		source:    source,
		publisher: publisher,
		enabled:   enabled,
		logger:    l,
	}
	s.task = poll.NewTask(initialDelay, interval, s.BackgroundScan)
	return s
}

func (s *Scanner) StartBackground() {
	s.task.Start()
}

func (s *Scanner) StopBackground() {
	s.task.Stop()
}

func (s *Scanner) BackgroundRunning() bool {
	return s.task.Running()
}

// BackgroundScan is the periodic entry point; honours the configuration gate
// that an on-demand Scan ignores.
func (s *Scanner) BackgroundScan(ctx context.Context) {
	if !s.enabled() {
		return
	}

	if err := s.Scan(ctx); err != nil {
		s.logger.LogWarn(ctx, "Background discovery scan failed.", logwrap.Err(err))
	}
}

// Scan fetches the module list and proposes unattached gateways, then
// unattached blinds whose gateway is already on the tree. A scan while the
// account is offline is skipped without error, the module view would be
// stale or unavailable anyway.
func (s *Scanner) Scan(ctx context.Context) error {
	if !s.account.State().Online {
		s.logger.LogDebug(ctx, "Skipping discovery scan, account offline.")
		return nil
	}

	modules, err := s.source.Modules(ctx)
	if err != nil {
		return err
	}

	s.scanGateways(ctx, modules)
	s.scanBlinds(ctx, modules)

	return nil
}

func (s *Scanner) scanGateways(ctx context.Context, modules []velux.Module) {
	for _, m := range modules {
		if m.Type != velux.ModuleTypeGateway {
			continue
		}

		if _, found := s.account.Gateway(m.Id); found {
			continue
		}

		s.logger.LogInfo(ctx, "Discovered gateway.", logwrap.Datum("gateway", m.Id))
		s.publisher.Publish(state.GatewayFound{
			Account:                    s.account.Id(),
			Gateway:                    m.Id,
			Identifier:                 identifier(s.account.Id(), m.Id),
			FirmwareRevisionNetatmo:    m.FirmwareRevisionNetatmo,
			FirmwareRevisionThirdparty: m.FirmwareRevisionThirdparty,
			HardwareVersion:            m.HardwareVersion,
		})
	}
}

func (s *Scanner) scanBlinds(ctx context.Context, modules []velux.Module) {
	if len(s.account.Gateways()) == 0 {
		return
	}

	for _, m := range modules {
		if m.Type != velux.ModuleTypeBlind {
			continue
		}

		gw, found := s.account.Gateway(m.Bridge)
		if !found {
			s.logger.LogDebug(ctx, "Holding back blind, gateway not attached yet.", logwrap.Datum("blind", m.Id), logwrap.Datum("bridge", m.Bridge))
			continue
		}

		if _, found := gw.Blind(m.Id); found {
			continue
		}

		s.logger.LogInfo(ctx, "Discovered blind.", logwrap.Datum("blind", m.Id), logwrap.Datum("gateway", m.Bridge))
		s.publisher.Publish(state.BlindFound{
			Account:          s.account.Id(),
			Gateway:          m.Bridge,
			Blind:            m.Id,
			Identifier:       identifier(s.account.Id(), m.Bridge, m.Id),
			Name:             m.Name,
			FirmwareRevision: m.FirmwareRevision,
			Manufacturer:     m.Manufacturer,
		})
	}
}

func identifier(parts ...string) string {
	return strings.Join(parts, "/")
}

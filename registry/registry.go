package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/veluxactive/state"
)

// Registry is the onboarding store for one account. Discovery proposes
// modules as GatewayFound and BlindFound events; the registry attaches them
// to the device tree and persists the membership so a restart rebuilds the
// tree before the first poll.
type Registry struct {
	account *state.Account
	path    string
	logger  logwrap.Logger
}

type savedChildren struct {
	Gateways []string            `json:"gateways"`
	Blinds   map[string][]string `json:"blinds"`
}

func New(account *state.Account, path string, l logwrap.Logger) *Registry {
	return &Registry{
		account: account,
		path:    path,
		logger:  l,
	}
}

// Restore attaches previously onboarded gateways and blinds. A missing file
// is a fresh account, not an error.
func (r *Registry) Restore() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to read onboarding state: %w", err)
	}

	saved := savedChildren{}
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("failed to parse onboarding state: %w", err)
	}

	for _, gwId := range saved.Gateways {
		gw := r.account.AttachGateway(gwId)

		for _, blindId := range saved.Blinds[gwId] {
			gw.AttachBlind(blindId)
		}
	}

	return nil
}

// Save writes the current tree membership, sorted so the file is stable
// across runs.
func (r *Registry) Save() error {
	saved := savedChildren{
		Blinds: map[string][]string{},
	}

	for gwId, gw := range r.account.Gateways() {
		saved.Gateways = append(saved.Gateways, gwId)

		blinds := []string(nil)
		for blindId := range gw.Blinds() {
			blinds = append(blinds, blindId)
		}
		sort.Strings(blinds)
		saved.Blinds[gwId] = blinds
	}
	sort.Strings(saved.Gateways)

	data, err := json.MarshalIndent(saved, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal onboarding state: %w", err)
	}

	if err := safeWriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write onboarding state: %w", err)
	}

	return nil
}

// Listen returns a channel suitable for subscribing to the event bus, with a
// goroutine attaching proposed modules behind it. Send nil to terminate.
func (r *Registry) Listen() chan any {
	ch := make(chan any, 100)

	go func() {
		for e := range ch {
			if e == nil {
				return
			}

			r.handle(e)
		}
	}()

	return ch
}

func (r *Registry) handle(e any) {
	ctx := context.Background()

	switch event := e.(type) {
	case state.GatewayFound:
		r.logger.LogInfo(ctx, "Onboarding gateway.", logwrap.Datum("gateway", event.Gateway))
		r.account.AttachGateway(event.Gateway)
	case state.BlindFound:
		gw, found := r.account.Gateway(event.Gateway)
		if !found {
			r.logger.LogWarn(ctx, "Blind proposed for unattached gateway, ignoring.", logwrap.Datum("blind", event.Blind), logwrap.Datum("gateway", event.Gateway))
			return
		}

		r.logger.LogInfo(ctx, "Onboarding blind.", logwrap.Datum("blind", event.Blind), logwrap.Datum("gateway", event.Gateway))
		gw.AttachBlind(event.Blind)
	default:
		return
	}

	if err := r.Save(); err != nil {
		r.logger.LogError(ctx, "Failed to persist onboarding state.", logwrap.Err(err))
	}
}

func safeWriteFile(name string, data []byte, perm os.FileMode) error {
	ut := time.Now().UnixNano() / int64(time.Millisecond)
	baseName := fmt.Sprintf("%s-%d", name, ut)
	newName := fmt.Sprintf("%s-new", baseName)
	oldName := fmt.Sprintf("%s-old", baseName)

	if err := os.WriteFile(newName, data, perm); err != nil {
		return fmt.Errorf("failed to write new file: %w", err)
	}

	_, err := os.Stat(name)
	oldExists := !os.IsNotExist(err)

	if oldExists {
		if err := os.Rename(name, oldName); err != nil {
			return fmt.Errorf("failed to move old file to temporary location: %w", err)
		}
	}

	if err := os.Rename(newName, name); err != nil {
		return fmt.Errorf("failed to move new file to file location: %w", err)
	}

	if oldExists {
		if err := os.Remove(oldName); err != nil {
			return fmt.Errorf("failed to remove old file: %w", err)
		}
	}

	return nil
}

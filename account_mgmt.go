package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"github.com/shimmeringbee/veluxactive/command"
	"github.com/shimmeringbee/veluxactive/config"
	"github.com/shimmeringbee/veluxactive/discovery"
	"github.com/shimmeringbee/veluxactive/poll"
	"github.com/shimmeringbee/veluxactive/registry"
	"github.com/shimmeringbee/veluxactive/state"
	"github.com/shimmeringbee/veluxactive/velux"
)

type StartedAccount struct {
	Name       string
	Dispatcher *command.Dispatcher
	Scanner    *discovery.Scanner
	Shutdown   func()
}

func loadAccountConfigurations(dir string) ([]config.AccountConfig, error) {
	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure account configuration directory exists: %w", err)
	}

	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory listing for account configurations: %w", err)
	}

	var retCfgs []config.AccountConfig

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dir, file.Name())
		data, err := ioutil.ReadFile(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read account configuration file '%s': %w", fullPath, err)
		}

		cfg := config.AccountConfig{
			Name: strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse account configuration file '%s': %w", fullPath, err)
		}

		retCfgs = append(retCfgs, cfg)
	}

	return retCfgs, nil
}

func startAccounts(cfgs []config.AccountConfig, mux *state.AccountMux, bus *state.EventBus, directories Directories, l logwrap.Logger) ([]StartedAccount, error) {
	var retAccounts []StartedAccount

	for _, cfg := range cfgs {
		dataDir := filepath.Join(directories.Data, "accounts", cfg.Name)

		if err := os.MkdirAll(dataDir, DefaultDirectoryPermissions); err != nil {
			return nil, fmt.Errorf("failed to create account data directory '%s': %w", dataDir, err)
		}

		started, err := startAccount(cfg, mux, bus, dataDir, l)
		if err != nil {
			return nil, fmt.Errorf("failed to start account '%s': %w", cfg.Name, err)
		}

		retAccounts = append(retAccounts, started)
	}

	return retAccounts, nil
}

func startAccount(cfg config.AccountConfig, mux *state.AccountMux, bus *state.EventBus, dataDir string, l logwrap.Logger) (StartedAccount, error) {
	wl := logwrap.New(nest.Wrap(l))
	wl.AddOptionsToLogger(logwrap.Datum("account", cfg.Name), logwrap.Source("velux"))

	veluxCfg, ok := cfg.Config.(*config.VeluxAccountConfig)
	if !ok {
		return StartedAccount{}, fmt.Errorf("unknown account type loaded: %s", cfg.Type)
	}

	baseURL := veluxCfg.BaseURL
	if baseURL == "" {
		baseURL = velux.DefaultBaseURL
	}

	httpClient := &http.Client{}

	session := velux.NewSession(baseURL, velux.Credentials{
		Username:     veluxCfg.Username,
		Password:     veluxCfg.Password,
		ClientId:     veluxCfg.ClientId,
		ClientSecret: veluxCfg.ClientSecret,
	}, httpClient, wl)

	client := velux.NewClient(baseURL, session, httpClient, time.Duration(veluxCfg.ApiTimeout)*time.Second, wl)

	account := state.NewAccount(cfg.Name)
	mux.Add(cfg.Name, account)

	reg := registry.New(account, filepath.Join(dataDir, "onboarded.json"), wl)
	if err := reg.Restore(); err != nil {
		return StartedAccount{}, fmt.Errorf("failed to restore onboarded modules: %w", err)
	}

	regCh := reg.Listen()
	bus.Subscribe(regCh)

	reconciler := poll.NewReconciler(account, client, bus, wl, poll.DefaultInitialDelay, time.Duration(veluxCfg.RefreshIntervalNormal)*time.Second)
	reconciler.Start()

	dispatcher := command.NewDispatcher(account, client, reconciler.HomeId, reconciler.TriggerNow, bus, wl)

	scanner := discovery.NewScanner(account, reconciler, bus, func() bool {
		return *veluxCfg.DiscoveryEnabled
	}, wl, discovery.DefaultInitialDelay, time.Duration(veluxCfg.DiscoveryInterval)*time.Second)
	scanner.StartBackground()

	wl.LogInfo(context.Background(), "Account started.", logwrap.Datum("refreshInterval", veluxCfg.RefreshIntervalNormal))

	return StartedAccount{
		Name:       cfg.Name,
		Dispatcher: dispatcher,
		Scanner:    scanner,
		Shutdown: func() {
			scanner.StopBackground()
			reconciler.Stop()

			bus.Unsubscribe(regCh)
			regCh <- nil

			mux.Remove(cfg.Name)
			session.Close()
		},
	}, nil
}

// constructInvokers builds the routing functions the interfaces use to reach
// a specific account's dispatcher and scanner.
func constructInvokers(started []StartedAccount) (command.Invoker, func(ctx context.Context, account string) error) {
	dispatchers := map[string]*command.Dispatcher{}
	scanners := map[string]*discovery.Scanner{}

	for _, s := range started {
		dispatchers[s.Name] = s.Dispatcher
		scanners[s.Name] = s.Scanner
	}

	invoke := func(ctx context.Context, account string, gatewayId string, blindId string, cmd command.Command) error {
		d, found := dispatchers[account]
		if !found {
			return fmt.Errorf("%w: %s", command.ErrUnknownAccount, account)
		}

		return d.Dispatch(ctx, gatewayId, blindId, cmd)
	}

	scan := func(ctx context.Context, account string) error {
		s, found := scanners[account]
		if !found {
			return fmt.Errorf("%w: %s", command.ErrUnknownAccount, account)
		}

		return s.Scan(ctx)
	}

	return invoke, scan
}

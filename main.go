package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	lw "github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/veluxactive/state"
)

func main() {
	ctx := context.Background()
	l := lw.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	l.LogInfo(ctx, "Shimmering Bee: Velux Active Bridge - Copyright 2021 Shimmering Bee Contributors - Starting...")

	directories := enumerateDirectories(ctx, l)

	l.LogInfo(ctx, "Directory enumeration complete.", lw.Datum("directories", directories))

	l, err := configureLogging(filepath.Join(directories.Config, "logging"), directories.Log, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to configure logging.", lw.Err(err))
	}

	accountCfgs, err := loadAccountConfigurations(filepath.Join(directories.Config, "accounts"))
	if err != nil {
		l.LogFatal(ctx, "Failed to load account configurations.", lw.Err(err))
	}

	interfaceCfgs, err := loadInterfaceConfigurations(filepath.Join(directories.Config, "interfaces"))
	if err != nil {
		l.LogFatal(ctx, "Failed to load interface configurations.", lw.Err(err))
	}

	l.LogInfo(ctx, "Loaded account configurations.", lw.Datum("configCount", len(accountCfgs)))

	bus := state.NewEventBus()
	mux := state.NewAccountMux()

	l.LogInfo(ctx, "Starting accounts.")
	startedAccounts, err := startAccounts(accountCfgs, mux, bus, directories, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start accounts.", lw.Err(err))
	}

	invoke, scan := constructInvokers(startedAccounts)

	l.LogInfo(ctx, "Starting interfaces.")
	startedInterfaces, err := startInterfaces(interfaceCfgs, mux, bus, invoke, scan, l)
	if err != nil {
		l.LogFatal(ctx, "Failed to start interfaces.", lw.Err(err))
	}

	l.LogInfo(ctx, "Velux Active bridge ready.")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, os.Kill)

	s := <-signalCh
	l.LogInfo(ctx, "Signal received, shutting down.", lw.Datum("signal", s.String()))

	for _, intf := range startedInterfaces {
		l.LogInfo(ctx, "Shutting down interface.", lw.Datum("interface", intf.Name))

		if err := intf.Shutdown(); err != nil {
			l.LogError(ctx, "Failed to shutdown interface.", lw.Err(err), lw.Datum("interface", intf.Name))
		}
	}

	for _, acct := range startedAccounts {
		l.LogInfo(ctx, "Shutting down account.", lw.Datum("account", acct.Name))
		acct.Shutdown()
	}

	l.LogInfo(ctx, "Shut down complete.")
}

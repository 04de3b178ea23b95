// Package main provides the entry point for ovpn3ctl, a command-line
// client driving OpenVPN 3 Linux sessions over D-Bus.
//
// Features:
//   - Profile management mapping names to OpenVPN configurations
//   - Secure credential storage using the system keyring
//   - Automatic TOTP second-factor codes from a stored seed
//   - Connection history
//
// Usage:
//
//	ovpn3ctl setup <profile> <config.ovpn> <username> [--totp]
//	ovpn3ctl connect <profile>
//	ovpn3ctl disconnect <profile>
//
// Environment:
//
//	Requires the OpenVPN 3 Linux services (configuration and session
//	managers) on the system bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ovpn3-tools/ovpn3ctl/cli"
	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildDate  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	cli.SetVersionInfo(appVersion, commitSHA, buildDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	defer common.CloseLogger()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupSignalHandler cancels the context on SIGINT/SIGTERM so retry
// loops and prompts unwind instead of leaving a half-driven session.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, shutting down", sig)
		cancel()
	}()
}

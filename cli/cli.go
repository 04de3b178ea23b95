// Package cli provides the ovpn3ctl command tree: profile setup,
// connect/disconnect, status, and connection history.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ovpn3-tools/ovpn3ctl/common"
	"github.com/ovpn3-tools/ovpn3ctl/config"
	"github.com/ovpn3-tools/ovpn3ctl/history"
	"github.com/ovpn3-tools/ovpn3ctl/keyring"
	"github.com/ovpn3-tools/ovpn3ctl/vpn"
)

// Version information, set by main from ldflags.
var (
	appVersion = "dev"
	commitSHA  = "unknown"
	buildDate  = "unknown"
)

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	commitSHA = commit
	buildDate = date
}

// Global flags.
var (
	verbose      bool
	setupTOTP    bool
	historyLimit int
)

var rootCmd = &cobra.Command{
	Use:   "ovpn3ctl",
	Short: "OpenVPN 3 session control",
	Long: `ovpn3ctl drives OpenVPN 3 Linux sessions from the command line.

Credentials are stored in the system keyring per profile. When a TOTP
seed is stored, the second authentication factor is answered
automatically; otherwise the server's prompt is shown interactively.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := common.LevelInfo
		if verbose {
			level = common.LevelDebug
		}
		if err := common.InitLogger(common.LogConfig{Level: level, EnableFile: true}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not initialize file logging: %v\n", err)
		}
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup <profile> <config.ovpn> <username>",
	Short: "Save a profile and its credentials",
	Long: `Register a VPN profile: validate and copy the OpenVPN configuration
file, record the username, and store the password in the keyring.
With --totp, a TOTP seed is also prompted for and stored, enabling
automatic one-time codes on connect.`,
	Args: cobra.ExactArgs(3),
	RunE: runSetup,
}

var connectCmd = &cobra.Command{
	Use:   "connect <profile> [username]",
	Short: "Connect a VPN session",
	Long: `Connect the profile's VPN session, authenticating with the stored
password and answering the second factor from the stored TOTP seed or
an interactive prompt. The username defaults to the one saved by setup.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <profile>",
	Short: "Disconnect a VPN session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisconnect,
}

var statusCmd = &cobra.Command{
	Use:   "status <profile>",
	Short: "Show the session status for a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent connection events",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ovpn3ctl v%s\n", appVersion)
		if buildDate != "unknown" {
			fmt.Printf("  Build:  %s\n", buildDate)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	setupCmd.Flags().BoolVar(&setupTOTP, "totp", false, "also store a TOTP seed for automatic one-time codes")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of events to show")

	rootCmd.AddCommand(setupCmd, connectCmd, disconnectCmd, statusCmd, listCmd, historyCmd, versionCmd)
}

// Execute runs the command tree under the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func runSetup(cmd *cobra.Command, args []string) error {
	name, configPath, username := args[0], args[1], args[2]

	store, err := config.NewStore()
	if err != nil {
		return err
	}

	profile := &config.Profile{
		Name:       name,
		Username:   username,
		ConfigPath: configPath,
	}
	if err := store.Add(profile); err != nil {
		return err
	}

	password, err := promptSecret(fmt.Sprintf("Password for %s", username))
	if err != nil {
		return err
	}
	if err := keyring.Set(keyring.ServiceFor(name), username, password); err != nil {
		return common.WrapError(err, "failed to store password")
	}

	if setupTOTP {
		seed, err := promptSecret("TOTP seed (base32)")
		if err != nil {
			return err
		}
		// Reject unusable seeds now instead of at connect time.
		if _, err := vpn.GenerateTOTP(seed, time.Now()); err != nil {
			return fmt.Errorf("invalid TOTP seed: %w", err)
		}
		if err := keyring.Set(keyring.ServiceFor(name), keyring.TOTPAccount, seed); err != nil {
			return common.WrapError(err, "failed to store TOTP seed")
		}
	}

	fmt.Printf("Profile %s saved\n", name)
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	store, err := config.NewStore()
	if err != nil {
		return err
	}
	profile, err := store.Get(args[0])
	if err != nil {
		return err
	}

	username := profile.Username
	if len(args) == 2 && args[1] != "" {
		username = args[1]
	}

	svc, err := vpn.NewDBusService()
	if err != nil {
		return err
	}
	defer svc.Close()

	resolver := &vpn.KeyringResolver{Profile: profile.Name, User: username}
	orch := vpn.NewOrchestrator(profile.Name, profile.ConfigPath, svc, resolver, promptLine)
	orch.SetOnStateChange(func(s vpn.State) {
		common.LogInfo("Profile %s: %s", profile.Name, s)
	})

	if err := store.MarkUsed(profile.Name); err != nil {
		common.LogWarn("Could not update profile usage: %v", err)
	}

	hist := openHistory()
	if hist != nil {
		defer hist.Close()
	}

	ctx := cmd.Context()
	fmt.Printf("Connecting to %s...\n", profile.Name)

	if err := orch.Connect(ctx); err != nil {
		record(hist, profile.Name, history.KindFailure, err.Error())
		// Best-effort teardown; the original failure stays visible.
		if derr := orch.Disconnect(ctx); derr != nil && !errors.Is(derr, common.ErrNotConnected) {
			common.LogWarn("Cleanup disconnect failed: %v", derr)
		}
		return fmt.Errorf("connection failed: %w", err)
	}

	record(hist, profile.Name, history.KindConnect, "")
	fmt.Printf("Connected to %s\n", profile.Name)
	return nil
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	name := args[0]

	svc, err := vpn.NewDBusService()
	if err != nil {
		return err
	}
	defer svc.Close()

	orch := vpn.NewOrchestrator(name, "", svc, nil, nil)

	hist := openHistory()
	if hist != nil {
		defer hist.Close()
	}

	if err := orch.Disconnect(cmd.Context()); err != nil {
		return err
	}

	record(hist, name, history.KindDisconnect, "")
	fmt.Printf("Disconnected from %s\n", name)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	name := args[0]

	svc, err := vpn.NewDBusService()
	if err != nil {
		return err
	}
	defer svc.Close()

	session, found, err := svc.LookupSession(name)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No active session for %s\n", name)
		return nil
	}

	poller := vpn.StatusPoller{Retry: vpn.DefaultRetryPolicy()}
	status, err := poller.Wait(cmd.Context(), session)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", name, status)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := config.NewStore()
	if err != nil {
		return err
	}

	profiles := store.List()
	if len(profiles) == 0 {
		fmt.Println("No VPN profiles configured.")
		fmt.Println("Use: ovpn3ctl setup <profile> <config.ovpn> <username>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUSERNAME\tTOTP\tLAST USED")
	fmt.Fprintln(w, "----\t--------\t----\t---------")

	for _, profile := range profiles {
		totp := "No"
		if keyring.Exists(keyring.ServiceFor(profile.Name), keyring.TOTPAccount) {
			totp = "Yes"
		}

		lastUsed := "-"
		if !profile.LastUsed.IsZero() {
			lastUsed = profile.LastUsed.Format("2006-01-02 15:04")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", profile.Name, profile.Username, totp, lastUsed)
	}

	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	hist, err := history.OpenDefault()
	if err != nil {
		return err
	}
	defer hist.Close()

	events, err := hist.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No connection events recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPROFILE\tEVENT\tDETAIL")
	fmt.Fprintln(w, "----\t-------\t-----\t------")

	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.At.Local().Format("2006-01-02 15:04:05"), e.Profile, e.Kind, e.Detail)
	}

	return w.Flush()
}

// openHistory opens the event log, degrading to nil when unavailable;
// connection attempts must not fail because the log cannot be written.
func openHistory() *history.Store {
	hist, err := history.OpenDefault()
	if err != nil {
		common.LogWarn("History unavailable: %v", err)
		return nil
	}
	return hist
}

func record(hist *history.Store, profile, kind, detail string) {
	if hist == nil {
		return
	}
	if err := hist.Record(profile, kind, detail); err != nil {
		common.LogWarn("Could not record history event: %v", err)
	}
}

// promptSecret reads a value without echoing it.
func promptSecret(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// promptLine reads a visible line; the typed value is submitted
// verbatim.
func promptLine(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

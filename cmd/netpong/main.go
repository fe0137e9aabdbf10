// Netpong: CLI entry point.
//
// Two players share one terminal (local) or play over a direct TCP link
// where the host owns the ball and the score. Launched without a subcommand
// it asks for the mode interactively.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/netpong/internal/app"
	"github.com/1ureka/netpong/internal/config"
	"github.com/1ureka/netpong/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on SIGINT while the terminal is not in raw mode.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Default()

	rootCmd := &cobra.Command{
		Use:   "netpong",
		Short: "Pong over a direct TCP link",
		Long: `Netpong plays Pong in the terminal.

Play both paddles on one keyboard with "local", or open a match with
"host" and let a friend "join" it. The host simulates the ball and keeps
the score; each side owns its own paddle.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfg.Debug {
				util.EnableDebug()
			}
			pterm.Info.Println(fmt.Sprintf("Netpong v%s", version))
			pterm.Println()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			askMode(&cfg)
			return run(ctx, cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flags.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "Simulation ticks per second")
	flags.StringVar(&cfg.SpectateAddr, "spectate", "", "Serve /ws, /metrics and /healthz on this address (e.g. :8080)")
	flags.BoolVar(&cfg.Bot, "bot", false, "Let a bot drive the local paddle(s)")
	flags.BoolVar(&cfg.Headless, "headless", false, "Do not draw the court or read the keyboard")

	rootCmd.AddCommand(
		localCmd(ctx, &cfg),
		hostCmd(ctx, &cfg),
		joinCmd(ctx, &cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func localCmd(ctx context.Context, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Play both paddles on this keyboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleLocal
			return run(ctx, *cfg)
		},
	}
}

func hostCmd(ctx context.Context, cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Wait for a peer and own the ball",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleHost
			return run(ctx, *cfg)
		},
	}
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", 0, "Port to listen on, 1~65535")
	cmd.MarkFlagRequired("port")
	return cmd
}

func joinCmd(ctx context.Context, cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Connect to a waiting host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleClient
			return run(ctx, *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.HostAddr, "host", "", "Host name or IP address")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", 0, "Host port, 1~65535")
	cmd.MarkFlagRequired("host")
	cmd.MarkFlagRequired("port")
	return cmd
}

// run plays one match. Leaving with the quit key is not an error.
func run(ctx context.Context, cfg config.Config) error {
	err := app.Run(ctx, cfg)
	if errors.Is(err, app.ErrQuit) || (err == nil && ctx.Err() != nil) {
		util.LogInfo("bye")
		return nil
	}
	if err != nil {
		return err
	}
	util.LogSuccess("match finished")
	return nil
}

// ---------------------------------------------------------------------------
// Interactive prompts
// ---------------------------------------------------------------------------

// askMode fills the role and address fields of cfg from prompts.
func askMode(cfg *config.Config) {
	mode, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Local  - Two players, one keyboard",
			"Host   - Wait for a friend to join",
			"Join   - Connect to a waiting host",
		}).
		WithDefaultText("Select a mode").
		Show()

	pterm.Println()

	switch {
	case strings.HasPrefix(mode, "Host"):
		cfg.Role = config.RoleHost
		cfg.Port = askPort("Port to listen on (1 ~ 65535)")
	case strings.HasPrefix(mode, "Join"):
		cfg.Role = config.RoleClient
		cfg.HostAddr = askHost()
		cfg.Port = askPort("Host port (1 ~ 65535)")
	default:
		cfg.Role = config.RoleLocal
	}
}

// askPort prompts the user for a port number until a valid one is entered.
func askPort(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && port >= 1 && port <= 65535 {
			pterm.Println()
			return port
		}

		util.LogWarning("invalid port number: must be 1 ~ 65535")
		pterm.Println()
	}
}

// askHost prompts for a non-empty host name or IP address.
func askHost() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Host address (e.g. 192.168.1.20)").
			Show()

		host := strings.TrimSpace(raw)
		if host != "" && !strings.ContainsAny(host, " /") {
			pterm.Println()
			return host
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a host name or IP address")
	}
}

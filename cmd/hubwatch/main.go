// Command hubwatch bridges GitHub webhook events to local agent sessions.
// The daemon subcommands manage a per-repository background process; the
// rest talk to it over its Unix socket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	goruntime "runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hubwatch/hubwatch/internal/cli"
	"github.com/hubwatch/hubwatch/internal/config"
	"github.com/hubwatch/hubwatch/internal/daemon"
	"github.com/hubwatch/hubwatch/internal/mcp"
	"github.com/hubwatch/hubwatch/internal/paths"
)

// Build info (set via ldflags).
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	flagRepo    string
	flagJSON    bool
	flagSession string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hubwatch",
		Short: "GitHub webhook events for local agent sessions",
		Long: `Hubwatch runs a per-repository daemon that provisions a GitHub webhook,
streams its deliveries over a websocket, and forwards events for watched
pull requests into subscribed agent sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", "", "Repository as owner/name (or HUBWATCH_REPO, or config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "JSON output for scripting")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("hubwatch v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	rootCmd.AddCommand(
		daemonCmd(),
		subscribeCmd(),
		unsubscribeCmd(),
		statusCmd(),
		eventsCmd(),
		mcpCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveRepo picks the repository: --repo flag, then config (which already
// honors HUBWATCH_REPO).
func resolveRepo() (string, error) {
	if flagRepo != "" {
		if err := paths.ValidateRepo(flagRepo); err != nil {
			return "", err
		}
		return flagRepo, nil
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return "", err
	}
	if cfg.Repo == "" {
		return "", fmt.Errorf("no repository configured; pass --repo owner/name or set HUBWATCH_REPO")
	}
	if err := paths.ValidateRepo(cfg.Repo); err != nil {
		return "", err
	}
	return cfg.Repo, nil
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}
			if err := cli.DaemonStart(repo); err != nil {
				return err
			}
			fmt.Printf("daemon started for %s\n", repo)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}
			if err := cli.DaemonStop(repo); err != nil {
				return err
			}
			fmt.Println("daemon stopped")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}
			if running, _, _ := cli.DaemonRunning(repo); running {
				if err := cli.DaemonStop(repo); err != nil {
					return err
				}
			}
			if err := cli.DaemonStart(repo); err != nil {
				return err
			}
			fmt.Printf("daemon restarted for %s\n", repo)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	})

	// The foreground entrypoint "daemon start" spawns. Hidden because users
	// normally never invoke it directly.
	run := &cobra.Command{
		Use:    "run",
		Short:  "Run the daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return err
			}
			if flagRepo != "" {
				cfg.Repo = flagRepo
			}
			lifecycle, err := daemon.NewLifecycle(cfg)
			if err != nil {
				return err
			}
			return lifecycle.Run(context.Background())
		},
	}
	cmd.AddCommand(run)

	return cmd
}

func parsePRArgs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one pull request number is required")
	}
	prs := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid pull request number %q", arg)
		}
		prs = append(prs, n)
	}
	return prs, nil
}

func subscribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe <pr>...",
		Short: "Subscribe a session to pull requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}
			prs, err := parsePRArgs(args)
			if err != nil {
				return err
			}
			sessionID := cli.ResolveSessionID(flagSession)
			message, err := cli.Subscribe(cmd.Context(), repo, sessionID, prs)
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagSession, "session", "", "Session id (default: HUBWATCH_SESSION or tmux pane)")
	return cmd
}

func unsubscribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unsubscribe <pr>...",
		Short: "Unsubscribe a session from pull requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}
			prs, err := parsePRArgs(args)
			if err != nil {
				return err
			}
			sessionID := cli.ResolveSessionID(flagSession)
			message, err := cli.Unsubscribe(cmd.Context(), repo, sessionID, prs)
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagSession, "session", "", "Session id (default: HUBWATCH_SESSION or tmux pane)")
	return cmd
}

func runStatus() error {
	repo, err := resolveRepo()
	if err != nil {
		return err
	}

	status, err := cli.Status(context.Background(), repo)
	if err != nil {
		if running, pid, _ := cli.DaemonRunning(repo); running {
			return fmt.Errorf("daemon (PID %d) is not answering: %w", pid, err)
		}
		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{"running": false, "repo": repo})
		}
		fmt.Printf("Daemon: not running (repo %s)\n", repo)
		return nil
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(status)
	}
	fmt.Print(cli.FormatStatus(status))
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func eventsCmd() *cobra.Command {
	var flagPR, flagLimit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recently routed events",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}
			entries, err := cli.Events(repo, flagPR, flagLimit)
			if err != nil {
				return err
			}
			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(entries)
			}
			fmt.Print(cli.FormatEvents(entries))
			return nil
		},
	}
	cmd.Flags().IntVar(&flagPR, "pr", 0, "Only events for this pull request")
	cmd.Flags().IntVar(&flagLimit, "limit", 50, "Maximum number of events")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve hubwatch tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := resolveRepo()
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(repo, mcp.WithVersion(Version))
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}
}

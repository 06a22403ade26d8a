// Package main provides the udahub binary entry point.
// UDA-Hub is a support ticket workflow engine that routes tickets through
// intake, classification, knowledge-base resolution, and escalation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/udahub/llm/providers"

	"github.com/c360studio/udahub/config"
	"github.com/c360studio/udahub/ticket"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "udahub"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "udahub",
		Short: "Support ticket workflow engine",
		Long: `UDA-Hub routes support tickets through a supervised workflow:
intake normalization, classification, knowledge-base resolution with
bounded retries, and human escalation with a full handoff package.

Tickets are accepted over NATS and every state transition is persisted,
so an interrupted session can be resumed where it stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(&configPath, &logLevel))
	cmd.AddCommand(resumeCmd(&configPath, &logLevel))
	cmd.AddCommand(chatCmd(&configPath, &logLevel))
	cmd.AddCommand(serveToolsCmd(&configPath, &logLevel))
	cmd.AddCommand(configCmd())

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// serve starts the hub and blocks until a shutdown signal arrives.
func serve(configPath, logLevel string) error {
	printBanner()

	app, ctx, cancel, err := startApp(configPath, logLevel)
	if err != nil {
		return err
	}
	defer cancel()
	defer app.Shutdown(30 * time.Second)

	if err := app.ListenForTickets(); err != nil {
		return fmt.Errorf("listen for tickets: %w", err)
	}

	slog.Info("UDA-Hub ready", "version", Version)

	<-ctx.Done()
	slog.Info("Received shutdown signal")
	return nil
}

// runCmd processes a single ticket from the command line and prints the outcome.
func runCmd(configPath, logLevel *string) *cobra.Command {
	var (
		ticketID string
		owner    string
		channel  string
		session  string
	)

	cmd := &cobra.Command{
		Use:   "run <content>",
		Short: "Process one support ticket and print the outcome",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, ctx, cancel, err := startApp(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer cancel()
			defer app.Shutdown(10 * time.Second)

			t := ticket.Ticket{
				ID:        ticketID,
				Content:   strings.Join(args, " "),
				OwnerID:   owner,
				Channel:   channel,
				SessionID: session,
			}
			st, err := app.Submit(ctx, t)
			if err != nil {
				return err
			}

			printOutcome(st)
			return nil
		},
	}

	cmd.Flags().StringVar(&ticketID, "ticket", "T-1", "Ticket ID")
	cmd.Flags().StringVar(&owner, "owner", "", "External user ID for account context")
	cmd.Flags().StringVar(&channel, "channel", "cli", "Channel the ticket arrived on")
	cmd.Flags().StringVar(&session, "session", "", "Session ID (resumes if it exists)")

	return cmd
}

// resumeCmd continues a previously interrupted session.
func resumeCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume an interrupted ticket session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, ctx, cancel, err := startApp(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer cancel()
			defer app.Shutdown(10 * time.Second)

			st, err := app.Resume(ctx, args[0])
			if err != nil {
				return err
			}

			printOutcome(st)
			return nil
		},
	}
}

// chatCmd runs the interactive loop.
func chatCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Submit tickets interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner()

			app, ctx, cancel, err := startApp(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer cancel()
			defer app.Shutdown(10 * time.Second)

			return app.RunREPL(ctx)
		},
	}
}

// serveToolsCmd runs only the kb/account/memory services against an
// external NATS server, for deployments where the engine runs elsewhere.
func serveToolsCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-tools",
		Short: "Serve the kb/account/memory tool services over NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logLevel)
			slog.SetDefault(logger)

			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.NATS.URL == "" {
				return fmt.Errorf("serve-tools requires nats.url to be set")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv, err := StartToolServer(cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Shutdown()

			slog.Info("Tool services ready", "url", cfg.NATS.URL)
			<-ctx.Done()
			slog.Info("Received shutdown signal")
			return nil
		},
	}
}

// configCmd manages the user-level configuration file.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default user config file if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.NewLoader(slog.Default()).EnsureUserConfig()
		},
	})

	return cmd
}

// startApp loads config, builds the app, and installs signal handling.
func startApp(configPath, logLevel string) (*App, context.Context, context.CancelFunc, error) {
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("start app: %w", err)
	}

	return app, ctx, cancel, nil
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// Layered: defaults, then user config, then project config
	return config.NewLoader(logger).Load()
}

func printOutcome(st *ticket.State) {
	fmt.Printf("Session:  %s\n", st.SessionID)
	fmt.Printf("Status:   %s\n", st.Status)
	if st.Escalation != nil {
		fmt.Printf("Outcome:  escalated to %s\n", st.Escalation.RecommendedDepartment)
		fmt.Printf("Summary:  %s\n", st.Escalation.SummaryForHuman)
		for _, step := range st.Escalation.ProposedNextSteps {
			fmt.Printf("  - %s\n", step)
		}
		return
	}
	if answer := st.FinalAnswer(); answer != "" {
		fmt.Printf("Answer:   %s\n", answer)
	}
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║             UDA-Hub v" + Version + "                     ║")
	fmt.Println("║      Support Ticket Workflow Engine           ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

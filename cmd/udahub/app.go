package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/udahub/capability"
	"github.com/c360studio/udahub/capability/agents"
	"github.com/c360studio/udahub/capability/tools"
	"github.com/c360studio/udahub/config"
	"github.com/c360studio/udahub/engine"
	"github.com/c360studio/udahub/llm"
	"github.com/c360studio/udahub/model"
	"github.com/c360studio/udahub/services"
	"github.com/c360studio/udahub/storage"
	"github.com/c360studio/udahub/ticket"
	"github.com/c360studio/udahub/trace"
)

// SubjectTicketSubmit is the request-reply subject for ticket submission.
// The reply carries the terminal ticket state as JSON.
const SubjectTicketSubmit = "udahub.tickets.submit"

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Session persistence
	store storage.Store

	// Tool services (nil when tools.serve is false)
	toolServer *services.Server
	kbSvc      *services.KBService
	accountSvc *services.AccountService
	memorySvc  *services.MemoryService

	// Tracing
	tracer   *trace.Emitter
	fileSink *trace.FileSink

	// Workflow
	engine *engine.Engine

	ticketSub *nats.Subscription
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context) error {
	// Start NATS (embedded or connect to external)
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	if err := a.startTracing(); err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	a.store = store

	if a.cfg.Tools.Serve {
		if err := a.startToolServices(); err != nil {
			return fmt.Errorf("start tool services: %w", err)
		}
	}

	eng, err := a.buildEngine()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	a.engine = eng

	a.logger.Info("Components initialized",
		"store", a.cfg.Store.Backend,
		"tools_serve", a.cfg.Tools.Serve)
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL,
			nats.Name(appName),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  filepathTempDir(),
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		// Connect to embedded server
		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	// Get JetStream context
	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

func (a *App) startTracing() error {
	var sinks []trace.Sink

	if a.cfg.Trace.LogPath != "" {
		sink, err := trace.NewFileSink(a.cfg.Trace.LogPath)
		if err != nil {
			return fmt.Errorf("open trace log: %w", err)
		}
		a.fileSink = sink
		sinks = append(sinks, sink)
	}

	if a.cfg.Trace.Publish {
		sinks = append(sinks, trace.NewNATSSink(a.natsConn, a.cfg.Trace.SubjectPrefix))
	}

	if a.cfg.Trace.Metrics {
		sink, err := trace.NewMetricsSink(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("register trace metrics: %w", err)
		}
		sinks = append(sinks, sink)
	}

	a.tracer = trace.NewEmitter(a.logger, sinks...)
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Store.Backend {
	case "kv":
		return storage.NewKVStore(ctx, a.js)
	case "sqlite":
		return storage.NewSQLiteStore(a.cfg.Store.Path)
	case "inmem":
		return storage.NewInMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

func (a *App) startToolServices() error {
	kb, err := services.NewKBService(a.cfg.Tools.KBPath)
	if err != nil {
		return fmt.Errorf("open knowledge base: %w", err)
	}
	a.kbSvc = kb

	account, err := services.NewAccountService(a.cfg.Tools.AccountPath)
	if err != nil {
		return fmt.Errorf("open account store: %w", err)
	}
	a.accountSvc = account

	memory, err := services.NewMemoryService(a.cfg.Tools.MemoryPath)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	a.memorySvc = memory

	if a.cfg.Tools.SeedDemo {
		if err := services.SeedDemo(kb, account); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		a.logger.Info("Seeded demo data")
	}

	srv := services.NewServer(a.natsConn, kb, account, memory,
		services.WithLogger(a.logger))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start tool server: %w", err)
	}
	a.toolServer = srv

	return nil
}

func (a *App) buildEngine() (*engine.Engine, error) {
	// Model routing: built-in defaults overlaid with config
	registry := model.NewDefaultRegistry()
	registry.MergeFromConfig(&a.cfg.Model)

	llmClient := llm.NewClient(registry, llm.WithLogger(a.logger))

	timeout := tools.WithTimeout(a.cfg.Tools.RequestTimeout)
	kbClient := tools.NewKBClient(a.natsConn, timeout)
	accountClient := tools.NewAccountClient(a.natsConn, timeout)
	memoryClient := tools.NewMemoryClient(a.natsConn, timeout)

	resolver := agents.NewResolverAgent(llmClient, kbClient, a.logger,
		agents.WithAccounts(accountClient),
		agents.WithMemory(memoryClient),
		agents.WithScoringConfig(a.cfg.Scoring),
	)

	mux := capability.NewMux(a.logger)
	agents.Register(mux,
		agents.NewIntakeAgent(llmClient, a.logger),
		agents.NewClassifierAgent(llmClient, a.logger),
		resolver,
		agents.NewEscalationAgent(llmClient, a.logger),
	)

	return engine.New(mux, a.store, a.tracer, engine.Config{
		MaxResolveAttempts: a.cfg.Engine.MaxResolveAttempts,
		ResolvedThreshold:  a.cfg.Engine.ResolvedThreshold,
		CallTimeout:        a.cfg.Engine.CallTimeout,
	}, engine.WithLogger(a.logger)), nil
}

// ListenForTickets subscribes to the ticket submission subject. Each request
// carries a ticket.Ticket payload; the reply is the terminal state.
func (a *App) ListenForTickets() error {
	sub, err := a.natsConn.QueueSubscribe(SubjectTicketSubmit, appName, func(msg *nats.Msg) {
		go a.handleTicketMsg(msg)
	})
	if err != nil {
		return err
	}
	a.ticketSub = sub
	a.logger.Info("Listening for tickets", "subject", SubjectTicketSubmit)
	return nil
}

func (a *App) handleTicketMsg(msg *nats.Msg) {
	var t ticket.Ticket
	if err := json.Unmarshal(msg.Data, &t); err != nil {
		a.replyError(msg, fmt.Errorf("decode ticket: %w", err))
		return
	}

	st, err := a.engine.Run(context.Background(), t)
	if err != nil {
		a.replyError(msg, err)
		return
	}

	data, err := json.Marshal(st)
	if err != nil {
		a.replyError(msg, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		a.logger.Warn("Failed to reply to ticket submission", "error", err)
	}
}

func (a *App) replyError(msg *nats.Msg, err error) {
	a.logger.Error("Ticket submission failed", "error", err)
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	_ = msg.Respond(payload)
}

// Submit runs one ticket through the workflow.
func (a *App) Submit(ctx context.Context, t ticket.Ticket) (*ticket.State, error) {
	return a.engine.Run(ctx, t)
}

// Resume continues a previously interrupted session.
func (a *App) Resume(ctx context.Context, sessionID string) (*ticket.State, error) {
	return a.engine.Resume(ctx, sessionID)
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	if a.ticketSub != nil {
		_ = a.ticketSub.Unsubscribe()
	}

	if a.toolServer != nil {
		a.toolServer.Stop()
	}
	if a.kbSvc != nil {
		_ = a.kbSvc.Close()
	}
	if a.accountSvc != nil {
		_ = a.accountSvc.Close()
	}
	if a.memorySvc != nil {
		_ = a.memorySvc.Close()
	}

	if a.fileSink != nil {
		_ = a.fileSink.Close()
	}

	// Close NATS connection
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}

	// Shutdown embedded server
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	a.logger.Info("Shutdown complete")
}

// RunREPL runs the interactive ticket loop.
func (a *App) RunREPL(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	seq := 0

	fmt.Println("Type a support request, /help for commands, quit to exit.")

	for {
		fmt.Print("udahub> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if input == "quit" || input == "exit" {
			return nil
		}

		if strings.HasPrefix(input, "/") {
			a.handleCommand(input)
			continue
		}

		seq++
		st, err := a.Submit(ctx, ticket.Ticket{
			ID:      fmt.Sprintf("chat-%d", seq),
			Content: input,
			Channel: "chat",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		printOutcome(st)
		fmt.Println()
	}
}

func (a *App) handleCommand(input string) {
	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /help     - Show this help")
		fmt.Println("  /status   - Show current status")
		fmt.Println("  /config   - Show current configuration")
		fmt.Println("  quit/exit - Exit")
		fmt.Println()
		fmt.Println("Or type any support request to run it through the workflow.")

	case "/status":
		fmt.Printf("Store: %s\n", a.cfg.Store.Backend)
		if a.embeddedServer != nil {
			fmt.Println("NATS: embedded")
		} else {
			fmt.Printf("NATS: %s\n", a.cfg.NATS.URL)
		}
		fmt.Printf("Tools served in-process: %v\n", a.cfg.Tools.Serve)

	case "/config":
		fmt.Printf("Engine:\n")
		fmt.Printf("  Max resolve attempts: %d\n", a.cfg.Engine.MaxResolveAttempts)
		fmt.Printf("  Resolved threshold: %.2f\n", a.cfg.Engine.ResolvedThreshold)
		fmt.Printf("  Call timeout: %s\n", a.cfg.Engine.CallTimeout)
		fmt.Printf("\nNATS:\n")
		if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
			fmt.Printf("  URL: %s\n", a.cfg.NATS.URL)
		} else {
			fmt.Println("  Mode: embedded")
		}

	default:
		fmt.Printf("Unknown command: %s\n", input)
		fmt.Println("Type /help for available commands.")
	}
}

// ToolServer is the standalone tool-service process used by serve-tools.
type ToolServer struct {
	nc      *nats.Conn
	server  *services.Server
	kb      *services.KBService
	account *services.AccountService
	memory  *services.MemoryService
}

// StartToolServer connects to external NATS and serves the tool subjects.
func StartToolServer(cfg *config.Config, logger *slog.Logger) (*ToolServer, error) {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(appName+"-tools"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	ts := &ToolServer{nc: nc}

	if ts.kb, err = services.NewKBService(cfg.Tools.KBPath); err != nil {
		ts.Shutdown()
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	if ts.account, err = services.NewAccountService(cfg.Tools.AccountPath); err != nil {
		ts.Shutdown()
		return nil, fmt.Errorf("open account store: %w", err)
	}
	if ts.memory, err = services.NewMemoryService(cfg.Tools.MemoryPath); err != nil {
		ts.Shutdown()
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	if cfg.Tools.SeedDemo {
		if err := services.SeedDemo(ts.kb, ts.account); err != nil {
			ts.Shutdown()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	ts.server = services.NewServer(nc, ts.kb, ts.account, ts.memory,
		services.WithLogger(logger))
	if err := ts.server.Start(); err != nil {
		ts.Shutdown()
		return nil, fmt.Errorf("start tool server: %w", err)
	}

	return ts, nil
}

// Shutdown stops the server and closes every open resource.
func (ts *ToolServer) Shutdown() {
	if ts.server != nil {
		ts.server.Stop()
	}
	if ts.kb != nil {
		_ = ts.kb.Close()
	}
	if ts.account != nil {
		_ = ts.account.Close()
	}
	if ts.memory != nil {
		_ = ts.memory.Close()
	}
	if ts.nc != nil {
		_ = ts.nc.Drain()
		ts.nc.Close()
	}
}

func filepathTempDir() string {
	dir, err := os.MkdirTemp("", "udahub-nats-*")
	if err != nil {
		return os.TempDir()
	}
	return dir
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"docchat/internal/backend"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/history"
	"docchat/internal/terminal"
	"docchat/internal/ui"
	"docchat/internal/watch"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	workDir, _ := os.Getwd()
	width, _ := terminal.Size()
	display := ui.NewDisplay(os.Stdout, width, terminal.IsTerminal())

	a := newApp(cfg, display, workDir, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.client.HealthCheck(ctx); err != nil {
		display.PrintWarning(fmt.Sprintf("Backend check failed: %v", err))
		display.PrintInfo("Requests will fail until the backend is reachable.")
	}

	if err := a.history.Load(); err != nil {
		display.PrintWarning(fmt.Sprintf("Failed to load history: %v", err))
	}

	if cfg.WatchDir != "" {
		if err := a.startWatcher(ctx, cfg); err != nil {
			display.PrintWarning(fmt.Sprintf("Watch mode disabled: %v", err))
		}
	}

	// Ctrl-C cancels the outstanding request, or quits when idle
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for sig := range sigChan {
			if sig == os.Interrupt && a.interrupt() {
				display.PrintInfo("Request cancelled")
				continue
			}
			cancel()
			return
		}
	}()

	display.PrintWelcome(cfg.BackendURL)
	a.run(ctx, readLines(os.Stdin))
	display.PrintGoodbye()
}

// readLines feeds input lines to a channel that is closed at EOF
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		input := terminal.NewLineReader(r)
		for {
			line, err := input.ReadLine()
			if err != nil {
				return
			}
			lines <- line
		}
	}()
	return lines
}

// parseFlags builds the configuration: defaults, then the YAML file, then
// DOCCHAT_* variables, then flags given explicitly on the command line.
func parseFlags(args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	fs := flag.NewFlagSet("docchat", flag.ContinueOnError)
	configPath := fs.String("config", config.GetEnv("DOCCHAT_CONFIG"), "YAML config file")
	backendURL := fs.String("backend-url", cfg.BackendURL, "Document backend URL")
	timeout := fs.Duration("timeout", cfg.RequestTimeout, "Per-request timeout (0 disables)")
	historyPath := fs.String("history", cfg.HistoryPath, "Transcript history file")
	logPath := fs.String("log", cfg.LogPath, "Diagnostic log file")
	watchDir := fs.String("watch", "", "Upload documents dropped into this directory")
	verbose := fs.Bool("verbose", false, "Also write diagnostics to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend-url":
			cfg.BackendURL = *backendURL
		case "timeout":
			cfg.RequestTimeout = *timeout
		case "history":
			cfg.HistoryPath = *historyPath
		case "log":
			cfg.LogPath = *logPath
		case "watch":
			cfg.WatchDir = *watchDir
		case "verbose":
			cfg.Verbose = *verbose
		}
	})

	return cfg, nil
}

// newLogger opens the diagnostic log. Diagnostics never go to stdout,
// which belongs to the conversation.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var writers []io.Writer
	closeFn := func() {}

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { f.Close() }
	}
	if cfg.Verbose {
		writers = append(writers, os.Stderr)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}

// app wires the controllers to the terminal
type app struct {
	display *ui.Display
	store   *chat.Store
	client  *backend.Client
	uploads *chat.UploadController
	conv    *chat.ConversationController
	history *history.Manager
	log     *slog.Logger
	workDir string

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	nextID  int
}

func newApp(cfg *config.Config, display *ui.Display, workDir string, logger *slog.Logger) *app {
	client := backend.NewClient(cfg.BackendURL, 0, cfg.UserAgent)
	store := chat.NewStore()
	hist := history.NewManager(cfg.HistoryPath, cfg.MaxHistorySize)

	store.Subscribe(display.HandleEvent)
	store.Subscribe(func(ev chat.Event) {
		if err := hist.Record(ev); err != nil {
			logger.Warn("failed to record history", "error", err)
		}
	})

	return &app{
		display: display,
		store:   store,
		client:  client,
		uploads: chat.NewUploadController(store, client, display, logger, cfg.RequestTimeout),
		conv:    chat.NewConversationController(store, client, display, logger, cfg.RequestTimeout),
		history: hist,
		log:     logger,
		workDir: workDir,
		cancels: make(map[int]context.CancelFunc),
	}
}

func (a *app) startWatcher(ctx context.Context, cfg *config.Config) error {
	w, err := watch.New(cfg.WatchExtensions, cfg.WatchDebounce, a.log)
	if err != nil {
		return err
	}
	a.display.PrintInfo(fmt.Sprintf("Watching %s for new documents", cfg.WatchDir))
	go func() {
		defer w.Close()
		if err := w.Run(ctx, cfg.WatchDir, a.uploads); err != nil {
			a.display.PrintWarning(fmt.Sprintf("Watch mode stopped: %v", err))
		}
	}()
	return nil
}

// request returns a context that interrupt can cancel
func (a *app) request(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.cancels[id] = cancel
	a.mu.Unlock()

	return ctx, func() {
		a.mu.Lock()
		delete(a.cancels, id)
		a.mu.Unlock()
		cancel()
	}
}

// interrupt cancels every outstanding request and reports whether any
// was cancelled
func (a *app) interrupt() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.cancels) == 0 {
		return false
	}
	for id, cancel := range a.cancels {
		cancel()
		delete(a.cancels, id)
	}
	return true
}

// run prompts for and handles lines until the input ends, the user quits,
// or ctx is cancelled
func (a *app) run(ctx context.Context, lines <-chan string) {
	for {
		a.display.PrintPrompt()
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || a.handle(ctx, line) {
				return
			}
		}
	}
}

// handle runs one line of input and reports whether the user asked to quit
func (a *app) handle(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/exit", "/quit":
		return true
	case "/clear":
		a.display.ClearScreen()
		a.display.PrintWelcome(a.client.BaseURL())
	case "/help":
		a.display.PrintHelp()
	case "/history":
		a.showHistory(rest)
	case "/session":
		a.display.PrintSession(a.store.Session())
	case "/files":
		a.listFiles(rest)
	case "/select":
		paths, err := terminal.ExpandPaths(a.workDir, strings.Fields(rest))
		if err != nil {
			a.display.PrintError(err)
			return false
		}
		a.uploads.SelectFiles(paths)
	case "/upload":
		reqCtx, done := a.request(ctx)
		defer done()
		a.uploads.SubmitFiles(reqCtx)
	case "/url":
		reqCtx, done := a.request(ctx)
		defer done()
		a.uploads.SubmitURL(reqCtx, rest)
	default:
		if strings.HasPrefix(cmd, "/") {
			a.display.PrintWarning(fmt.Sprintf("Unknown command %s (try /help)", cmd))
			return false
		}
		reqCtx, done := a.request(ctx)
		defer done()
		a.conv.SetDraft(line)
		start := time.Now()
		if err := a.conv.Submit(reqCtx); err == nil {
			a.log.Debug("question answered", "duration", time.Since(start))
		}
	}
	return false
}

func (a *app) showHistory(arg string) {
	switch arg {
	case "":
		a.display.PrintTranscript(a.history.GetCurrentTranscript())
	case "all":
		a.display.PrintTranscriptList(a.history.Transcripts())
	default:
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			a.display.PrintError(fmt.Errorf("invalid /history argument %q (want a count or \"all\")", arg))
			return
		}
		a.display.PrintRecent(a.history.Recent(n))
	}
}

func (a *app) listFiles(partial string) {
	matches := terminal.FindMatchingFiles(a.workDir, partial)
	if len(matches) == 0 {
		a.display.PrintInfo("No matching files")
		return
	}
	a.display.PrintInfo(fmt.Sprintf("%d file(s), select with /select <path>:", len(matches)))
	for i, m := range matches {
		if i == 20 {
			a.display.PrintInfo(fmt.Sprintf("... and %d more", len(matches)-20))
			break
		}
		a.display.PrintInfo("  " + m)
	}
}

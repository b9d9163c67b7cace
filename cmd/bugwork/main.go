package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/bugwork/pkg/app"
	"github.com/vanderheijden86/bugwork/pkg/bz"
	"github.com/vanderheijden86/bugwork/pkg/config"
	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/metrics"
	"github.com/vanderheijden86/bugwork/pkg/render"
	"github.com/vanderheijden86/bugwork/pkg/share"
	"github.com/vanderheijden86/bugwork/pkg/store"
	"github.com/vanderheijden86/bugwork/pkg/ui"
	"github.com/vanderheijden86/bugwork/pkg/version"
)

// overrides are the command-line settings that win over config.yaml.
type overrides struct {
	url    string
	legacy bool
	inbox  string
	poll   bool
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: XDG config dir)")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	urlFlag := flag.String("url", "", "Bug service base URL (overrides config and BUGWORK_URL)")
	legacyFlag := flag.Bool("legacy", false, "Run the single-tenant bug creation flow")
	pathFlag := flag.String("path", "/", "Initial path, e.g. /bug/123 or /search/crash")
	shareFlag := flag.String("share", "", "Comma-separated files to attach to a new bug")
	inboxFlag := flag.String("inbox", "", "Watch this directory for files to share")
	pollFlag := flag.Bool("poll", false, "Poll the share inbox instead of using fsnotify")
	debugFlag := flag.Bool("debug", false, "Write debug output and timings to the log file")
	logFile := flag.String("log-file", "", "Log file (default: XDG state dir)")
	flag.Parse()

	if *help {
		fmt.Println("Usage: bugwork [options]")
		fmt.Println("\nA terminal client for a Bugzilla-style bug tracker.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("bugwork %s\n", version.Version)
		os.Exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "bugwork needs an interactive terminal.")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath, overrides{
		url:    *urlFlag,
		legacy: *legacyFlag,
		inbox:  *inboxFlag,
		poll:   *pollFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logPath := *logFile
	if logPath == "" {
		logPath = defaultLogPath()
	}
	logger, closeLog, err := openLog(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if *debugFlag {
		debug.SetEnabled(true)
		debug.SetOutput(logger.Writer())
		metrics.SetEnabled(true)
		defer dumpMetrics(logger)
	}

	if err := run(cfg, logger, *pathFlag, splitList(*shareFlag)); err != nil {
		fmt.Printf("Error running bugwork: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path (or the XDG config when empty) and applies the
// command-line overrides.
func loadConfig(path string, o overrides) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	return applyOverrides(cfg, o)
}

func applyOverrides(cfg config.Config, o overrides) (config.Config, error) {
	if u := strings.TrimSpace(o.url); u != "" {
		cfg.Server.URL = strings.TrimRight(u, "/")
	}
	if o.legacy {
		cfg.Mode = config.ModeLegacy
	}
	if o.inbox != "" {
		cfg.Share.InboxDir = o.inbox
	}
	if o.poll {
		cfg.Share.ForcePoll = true
	}
	return cfg, cfg.Validate()
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultLogPath() string {
	dir := config.StateDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "bugwork.log")
	}
	return filepath.Join(dir, "bugwork.log")
}

func openLog(path string) (*log.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := tea.LogToFile(path, "bugwork")
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "bugwork ", log.LstdFlags), func() { _ = f.Close() }, nil
}

func dumpMetrics(logger *log.Logger) {
	for _, s := range metrics.AllTimingStats() {
		if s.Count == 0 {
			continue
		}
		logger.Printf("timing %s: %+v", s.Name, s)
	}
}

func run(cfg config.Config, logger *log.Logger, path string, shared []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var clientOpts []bz.Option
	if cfg.Server.Timeout > 0 {
		clientOpts = append(clientOpts, bz.WithTimeout(time.Duration(cfg.Server.Timeout)*time.Second))
	}
	client, err := bz.NewClient(cfg.Server.URL, clientOpts...)
	if err != nil {
		return err
	}

	panes := render.NewPanes()
	bridge := ui.NewBridge()
	a, err := app.New(app.Options{
		Config:    &cfg,
		Service:   client,
		Store:     st,
		Host:      panes,
		Notifier:  bridge,
		Logger:    logger,
		BugURL:    client.BugURL,
		Clipboard: clipboard.WriteAll,
		Redraw:    bridge.Redraw,
		Width:     cfg.UI.WordWrap,
	})
	if err != nil {
		return err
	}

	user := func() string {
		name, _ := a.Session().User()
		return name
	}
	m := ui.NewModel(panes, a.Router(), user)
	a.Session().Observe(bridge.SessionEvent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return runTUIProgram(m, func(p *tea.Program) {
		bridge.Attach(p)
		panes.OnChange(bridge.Redraw)

		go func() {
			if err := a.Start(ctx, path); err != nil {
				logger.Printf("start: %v", err)
			}
		}()
		if len(shared) > 0 {
			a.Share(share.FromPaths(shared...))
		}
		if cfg.Share.InboxDir != "" {
			watchInbox(ctx, cfg.Share, a, logger)
		}
	})
}

func openStore() (*store.SQLite, error) {
	path := config.StorePath()
	if path == "" {
		return nil, errors.New("cannot determine state directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return store.OpenSQLite(path)
}

func watchInbox(ctx context.Context, sc config.ShareConfig, a *app.App, logger *log.Logger) {
	in, err := share.NewInbox(sc.InboxDir, sc.ForcePoll)
	if err != nil {
		logger.Printf("share inbox: %v", err)
		return
	}
	if err := in.Start(); err != nil {
		logger.Printf("share inbox: %v", err)
		return
	}
	logger.Printf("watching %s for shared files", in.Dir())
	go func() {
		defer in.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case act := <-in.Activities():
				a.Share(act)
			}
		}
	}()
}

func runTUIProgram(m ui.Model, attach func(*tea.Program)) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated runs: set BUGWORK_AUTOCLOSE_MS.
	if v := os.Getenv("BUGWORK_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				select {
				case <-runDone:
				case <-time.After(time.Duration(ms) * time.Millisecond):
					p.Quit()
				}
			}()
		}
	}

	// Send blocks until the event loop runs, so deliveries start from a
	// goroutine.
	go attach(p)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

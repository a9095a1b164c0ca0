package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/codecanvas/pkg/session"
	"github.com/odvcencio/codecanvas/pkg/transcript"
)

func runShellCommand(args []string) error {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	projectID := fs.String("project", "", "project id (defaults to the active project)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.idctx.IsAuthenticated() {
		return fmt.Errorf("not signed in; run 'canvas login' first")
	}

	ctx := context.Background()
	if err := a.projects.Fetch(ctx); err != nil {
		return err
	}
	a.restoreActiveProject()

	scope := *projectID
	if scope == "" {
		scope = a.projects.ActiveProjectID()
	}

	maxRuntime := a.cfg.Session.MaxRuntime
	if p, err := a.projects.Get(scope); err == nil && p.MaxRuntimeSeconds > 0 {
		maxRuntime = time.Duration(p.MaxRuntimeSeconds) * time.Second
	}

	log := transcript.New()
	mgr := session.New(session.Config{
		BaseURL:       a.cfg.Server.URL,
		Transport:     session.NewWebSocketTransport(),
		Auth:          a.idctx,
		Scope:         a.projects,
		Transcript:    log,
		Logger:        a.logger,
		RetryDelay:    a.cfg.Session.ReconnectDelay,
		FailureGrace:  a.cfg.Session.FailureGrace,
		FallbackScope: a.cfg.Session.FallbackScope,
	})
	defer mgr.Close()

	watchdog := &runtimeWatchdog{
		limit: maxRuntime,
		expire: func() {
			mgr.ForceTerminate()
			log.Error("Process terminated due to timeout.")
		},
	}
	defer watchdog.Disarm()

	log.SetObserver(func(e transcript.Entry) {
		if e.Kind == transcript.KindOutput {
			// Output arriving means the command is producing; stand down.
			watchdog.Disarm()
		}
		printEntry(e)
	})

	if err := mgr.Initialize(ctx, scope); err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "clear", "cls":
			log.Clear()
			fmt.Print("\033[2J\033[H")
			continue
		case "exit", "quit":
			mgr.Disconnect()
			fmt.Println("Session closed.")
			return nil
		}

		if err := mgr.Submit(line); err == nil {
			watchdog.Arm()
		}
	}
	mgr.Disconnect()
	return scanner.Err()
}

func printEntry(e transcript.Entry) {
	switch e.Kind {
	case transcript.KindOutput:
		// Payloads carry their own newlines and prompts.
		fmt.Print(e.Text)
	case transcript.KindError:
		fmt.Fprintln(os.Stderr, e.Text)
	case transcript.KindCommand:
		// The user just typed it; no echo.
	}
}

// runtimeWatchdog enforces the per-project execution limit. Armed on each
// submitted command, disarmed when output arrives; on expiry it forces
// termination and surfaces the timeout.
type runtimeWatchdog struct {
	mu     sync.Mutex
	limit  time.Duration
	timer  *time.Timer
	expire func()
}

func (w *runtimeWatchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.limit, w.expire)
}

func (w *runtimeWatchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

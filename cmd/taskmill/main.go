// Package main is the entry point for the taskmill CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/taskmill/taskmill/internal/broadcast"
	"github.com/taskmill/taskmill/internal/render"
	"github.com/taskmill/taskmill/internal/server"
	"github.com/taskmill/taskmill/internal/state"
	"github.com/taskmill/taskmill/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Load .env for API keys and endpoints
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("taskmill"),
		kong.Description("Goal-driven task execution with durable checkpoints"),
		kong.UsageOnError(),
		kongVars(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// Run starts the HTTP/SSE server.
func (c *ServeCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := rt.cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(rt.ctl).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("taskmill listening on %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	fmt.Println("\nshutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	rt.ctl.Wait()
	return nil
}

// Run executes one goal and streams progress to stdout.
func (c *RunCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	id := uuid.NewString()

	// Subscribe first so no event is missed.
	events := rt.ctl.Subscribe(ctx, id)
	if _, err := rt.ctl.Start(ctx, c.Goal, id); err != nil {
		return err
	}
	fmt.Printf("session %s\n\n", id)

	streamToStdout(events)
	rt.ctl.Wait()

	sess, err := rt.ctl.GetState(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(render.Transcript(sess, render.DefaultWidth))
	if sess.Phase == state.PhaseError {
		return fmt.Errorf("session failed: %s", sess.Error)
	}
	return nil
}

// Run lists recent sessions.
func (c *SessionsCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	summaries, err := rt.ctl.ListSessions(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	for _, s := range summaries {
		fmt.Printf("%s  %-10s  %d/%d tasks  %s\n",
			s.ID, s.Phase, s.Completed, s.Tasks, s.Goal)
	}
	return nil
}

// Run renders a session transcript.
func (c *ShowCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	load := func() (string, error) {
		sess, err := rt.ctl.GetState(ctx, c.Session)
		if err != nil {
			return "", err
		}
		return render.Transcript(sess, render.DefaultWidth), nil
	}

	content, err := load()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %s not found", c.Session)
		}
		return err
	}

	if c.NoPager {
		fmt.Print(content)
		return nil
	}

	pager := render.NewPager("taskmill " + c.Session)
	if c.Follow {
		if cli.Memory || rt.cfg.Storage.InMemory {
			return fmt.Errorf("--follow requires the SQLite store")
		}
		return pager.RunLive(rt.cfg.Storage.Path, load)
	}
	return pager.Run(content)
}

// Run resumes a paused session and streams progress.
func (c *ResumeCmd) Run(cli *CLI) error {
	rt, err := newRuntime(cli, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	sess, err := rt.ctl.GetState(ctx, c.Session)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %s not found", c.Session)
		}
		return err
	}
	if sess.Phase == state.PhaseCompleted || sess.Phase == state.PhaseError {
		fmt.Printf("session %s already finished (%s)\n", c.Session, sess.Phase)
		return nil
	}

	events := rt.ctl.Subscribe(ctx, c.Session)
	if err := rt.ctl.Resume(ctx, c.Session, c.Input); err != nil {
		return err
	}

	streamToStdout(events)
	rt.ctl.Wait()

	sess, err = rt.ctl.GetState(ctx, c.Session)
	if err != nil {
		return err
	}
	if sess.Phase == state.PhaseError {
		return fmt.Errorf("session failed: %s", sess.Error)
	}
	return nil
}

// Run prints version information.
func (c *VersionCmd) Run(cli *CLI) error {
	fmt.Printf("taskmill version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

// streamToStdout prints a live event stream until it terminates.
func streamToStdout(events <-chan broadcast.Event) {
	for ev := range events {
		switch ev.Type {
		case broadcast.TypePhaseChange:
			if phase, ok := ev.Data["phase"].(string); ok {
				fmt.Printf("[%s]\n", phase)
			}
		case broadcast.TypeTrace:
			if tr, ok := ev.Data["trace"].(state.TraceEntry); ok {
				fmt.Printf("  %s: %s\n", tr.Node, tr.Message)
			}
		case broadcast.TypeMessage:
			if m, ok := ev.Data["message"].(state.Message); ok {
				fmt.Printf("\n%s:\n%s\n\n", m.Role, m.Content)
			}
		case broadcast.TypeError:
			if msg, ok := ev.Data["error"].(string); ok {
				fmt.Printf("error: %s\n", msg)
			}
		}
	}
}

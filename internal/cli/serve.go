// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Long-running commands: serve and watch.
//
// Command: serve [--host H] [--port N] [--no-watch]
//
// Starts the HTTP API on the configured address. When watching is enabled
// changes made by other processes are logged as they land. Ctrl+C or
// SIGTERM shuts the server down gracefully.
//
// Command: watch
//
// Prints a line per change to the conversations directory until
// interrupted. With --json each event is one JSON object per line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jeranaias/rigrun-chatstore/internal/server"
	"github.com/jeranaias/rigrun-chatstore/internal/watch"
)

// ShutdownTimeout bounds the wait for in-flight requests on exit.
const ShutdownTimeout = 10 * time.Second

// HandleServe handles "serve".
func (a *App) HandleServe() error {
	p := NewArgParser(a.args.Raw, "host", "port")

	cfg := server.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		RateLimitRPS:   a.cfg.Server.RateLimitRPS,
		RateLimitBurst: a.cfg.Server.RateLimitBurst,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		Version:        Version,
		Logger:         a.logger,
	}
	if host := p.Flag("host"); host != "" {
		cfg.Host = host
	}
	if p.HasFlag("port") {
		port, err := strconv.Atoi(p.Flag("port"))
		if err != nil || port < 0 || port > 65535 {
			return &ValidationError{Field: "port", Value: p.Flag("port"), Reason: "must be 0-65535", Example: "chatstore serve --port 3001"}
		}
		cfg.Port = port
	}

	srv := server.New(a.conversations, a.settings, cfg)
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr(), err)
	}

	if a.cfg.Watch.Enabled && !p.BoolFlag("no-watch") {
		w, err := a.startWatcher(func(ev watch.Event) {
			a.logger.Printf("WATCH_EVENT | kind=%s file=%s", ev.Kind, ev.Filename)
		})
		if err != nil {
			ln.Close()
			return err
		}
		defer w.Close()
	}

	a.printf("%s Listening on %s\n", SuccessStyle.Render("[OK]"), HighlightStyle.Render("http://"+ln.Addr().String()))
	a.printf("%s\n", DimStyle.Render("Data: "+a.conversations.Dir()+"  (Ctrl+C to stop)"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveUntil(ctx, srv, ln)
}

// serveUntil serves on ln until ctx is done, then shuts down gracefully.
func serveUntil(ctx context.Context, srv *server.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// startWatcher watches the conversations directory with the configured
// debounce.
func (a *App) startWatcher(handler watch.Handler) (*watch.Watcher, error) {
	debounce := time.Duration(a.cfg.Watch.DebounceMillis) * time.Millisecond
	w, err := watch.New(a.conversations.Dir(), debounce, handler, watch.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// HandleWatch handles "watch".
func (a *App) HandleWatch() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.watchUntil(ctx)
}

// watchUntil prints events until ctx is done. The handler runs on the
// watcher's single delivery goroutine.
func (a *App) watchUntil(ctx context.Context) error {
	enc := json.NewEncoder(a.Stdout)
	w, err := a.startWatcher(func(ev watch.Event) {
		if a.args.JSON {
			enc.Encode(ev)
			return
		}
		fmt.Fprintf(a.Stdout, "%s  %s %s\n",
			DimStyle.Render(ev.Time.Local().Format("15:04:05")),
			eventLabel(ev.Kind),
			ev.Filename)
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if !a.args.JSON {
		a.printf("%s\n", DimStyle.Render("Watching "+a.conversations.Dir()+"  (Ctrl+C to stop)"))
	}
	<-ctx.Done()
	return nil
}

// eventLabel pads before styling so escape codes do not skew columns.
func eventLabel(k watch.Kind) string {
	label := fmt.Sprintf("%-13s", k)
	switch k {
	case watch.ConversationWritten:
		return SuccessStyle.Render(label)
	case watch.ConversationRemoved:
		return ErrorStyle.Render(label)
	default:
		return WarningStyle.Render(label)
	}
}

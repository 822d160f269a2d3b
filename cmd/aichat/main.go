package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"ai-chat/internal/chat"
	"ai-chat/internal/cli"
	"ai-chat/internal/repository"
	"ai-chat/internal/settings"
)

const usage = `aichat is a terminal client for the ai-chat relay.

Usage:
  aichat [--server <url>] [--store <target>] [--profile <name>]

Flags:
  --server   string  relay base URL (default http://localhost:8080)
  --store    string  memory | sqlite:<path> | dynamodb:<table>
  --profile  string  settings profile name (default "default")`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("aichat", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprintln(os.Stderr, usage) }

	dataDir := defaultDataDir()
	var serverURL, storeTarget, profile string
	fs.StringVar(&serverURL, "server", envOr("AICHAT_SERVER", "http://localhost:8080"), "relay base URL")
	fs.StringVar(&storeTarget, "store", "sqlite:"+filepath.Join(dataDir, "settings.db"), "settings store")
	fs.StringVar(&profile, "profile", repository.DefaultProfile, "settings profile")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse flags: %w", err)
	}

	store, closeStore, err := cli.OpenStore(ctx, storeTarget, profile)
	if err != nil {
		return err
	}
	defer closeStore()

	relay, err := chat.NewHTTPRelay(serverURL)
	if err != nil {
		return err
	}
	mgr, err := settings.NewManager(store, "")
	if err != nil {
		return err
	}
	current, err := mgr.Load(ctx)
	if err != nil {
		return err
	}

	session, err := chat.NewSession(relay, current.APIKey, current.Model)
	if err != nil {
		return err
	}
	session.Start(ctx)

	repl, err := cli.NewREPL(session, mgr, relay, os.Stdout)
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := filepath.Join(dataDir, "history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
		line.Close()
	}()

	return repl.Run(ctx, historyReader{line})
}

// historyReader records every non-empty line in the liner history.
type historyReader struct {
	*liner.State
}

func (h historyReader) Prompt(p string) (string, error) {
	in, err := h.State.Prompt(p)
	if err == nil && strings.TrimSpace(in) != "" {
		h.AppendHistory(in)
	}
	return in, err
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "aichat")
	_ = os.MkdirAll(dir, 0o700)
	return dir
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

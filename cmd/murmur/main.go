// Command murmur is a terminal chat client for a murmur backend.
//
// Usage:
//
//	murmur [flags]
//
// Flags:
//
//	-server string   Backend base URL (default: MURMUR_SERVER or http://localhost:8000)
//	-session string  Session ID to resume (default: new session)
//	-record string   Audio capture command, split on spaces (default: MURMUR_RECORD_CMD)
//
// Settings are fetched from the backend's /settings endpoint; OPENAI_*
// and MCP_COMMAND environment variables (or a .env file) fill the gaps
// when the backend has none.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/backend"
	"github.com/fwojciec/murmur/capture"
	"github.com/fwojciec/murmur/chat"
	"github.com/fwojciec/murmur/store"
	"github.com/fwojciec/murmur/tui"
	"github.com/joho/godotenv"
)

const defaultServer = "http://localhost:8000"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "murmur: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	var (
		serverFlag  = flag.String("server", "", "Backend base URL")
		sessionFlag = flag.String("session", "", "Session ID to resume")
		recordFlag  = flag.String("record", "", "Audio capture command")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger()

	server := firstNonEmpty(*serverFlag, os.Getenv("MURMUR_SERVER"), defaultServer)
	client := backend.New(server, backend.WithLogger(logger))

	// Remote history is best-effort: an unreachable backend starts the
	// client with an empty session list, not an error.
	st := store.New(client, logger)
	st.Load(ctx)

	settings := resolveSettings(ctx, client, logger)

	sessionID := *sessionFlag
	if sessionID == "" {
		sessionID = murmur.NewID()
	}

	events := make(chan chat.TurnEvent, 256)
	orch := chat.New(client, st,
		chat.WithSettings(settings),
		chat.WithLogger(logger),
		chat.WithEventHandler(func(evt chat.TurnEvent) { events <- evt }),
	)

	// Push local settings so the backend uses them even for requests it
	// originates. Failure is not fatal: each turn carries them anyway.
	if !settings.IsZero() {
		if err := orch.PushSettings(ctx, sessionID); err != nil {
			logger.Warn("push settings", "error", err)
		}
	}

	rec := capture.NewRecorder(recordDevice(*recordFlag), logger)

	model := tui.New(orch.Send, orch, rec, st, events, murmur.DefaultTheme(), tui.Config{
		SessionID:  sessionID,
		ServerURL:  server,
		AttachBase: workDir(),
	})
	if err := tui.Run(ctx, model); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}

// resolveSettings prefers the backend's stored settings and falls back
// to the local environment per field.
func resolveSettings(ctx context.Context, client *backend.Client, logger *slog.Logger) murmur.Settings {
	settings, err := client.FetchSettings(ctx)
	if err != nil {
		logger.Warn("fetch settings", "error", err)
	}
	if settings.Model == "" {
		settings.Model = os.Getenv("OPENAI_MODEL")
	}
	if settings.APIKey == "" {
		settings.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if settings.BaseURL == "" {
		settings.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if settings.MCPCommand == "" {
		settings.MCPCommand = os.Getenv("MCP_COMMAND")
	}
	return settings
}

// recordDevice builds the capture device from the -record flag or the
// MURMUR_RECORD_CMD env var, defaulting to sox's rec writing WAV to
// stdout.
func recordDevice(flagValue string) capture.Device {
	cmd := firstNonEmpty(flagValue, os.Getenv("MURMUR_RECORD_CMD"))
	if cmd == "" {
		return &capture.CommandDevice{
			Command:  []string{"rec", "-q", "-t", "wav", "-"},
			MimeType: "audio/wav",
		}
	}
	return &capture.CommandDevice{
		Command:  strings.Fields(cmd),
		MimeType: os.Getenv("MURMUR_RECORD_MIME"),
	}
}

func newLogger() *slog.Logger {
	// The TUI owns stdout; logs go to stderr at warn level so transient
	// persistence failures surface without corrupting the display.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func workDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

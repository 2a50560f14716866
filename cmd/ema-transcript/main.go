package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	transcript "github.com/koscakluka/ema-transcript/core"
	"github.com/koscakluka/ema-transcript/core/analysis"
	analysisopenai "github.com/koscakluka/ema-transcript/core/analysis/openai"
	"github.com/koscakluka/ema-transcript/core/items"
	"github.com/koscakluka/ema-transcript/core/realtime"
	"github.com/koscakluka/ema-transcript/core/speechtotext"
	"github.com/koscakluka/ema-transcript/core/speechtotext/deepgram"
	sttopenai "github.com/koscakluka/ema-transcript/core/speechtotext/openai"
	"github.com/koscakluka/ema-transcript/internal/archive"
	"github.com/koscakluka/ema-transcript/internal/config"
	"github.com/koscakluka/ema-transcript/internal/logging"
	"github.com/koscakluka/ema-transcript/internal/server"
	"github.com/koscakluka/ema-transcript/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	replayPath := flag.String("replay", "", "replay a JSONL event recording instead of connecting")
	withTUI := flag.Bool("tui", false, "show the live transcript in the terminal")
	flag.Parse()

	if err := run(*configPath, *replayPath, *withTUI); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, replayPath string, withTUI bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg, withTUI)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)
	logProvider := logging.Install(logger.Handler())
	defer logProvider.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *archive.Archive
	if cfg.ArchivePath != "" {
		if store, err = archive.Open(cfg.ArchivePath); err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer store.Close()
	}

	var program *tea.Program
	refresh := func() {
		if program != nil {
			program.Send(tui.Refresh())
		}
	}

	var session *transcript.Session
	opts := []transcript.SessionOption{
		transcript.WithBaseContext(ctx),
		transcript.WithItemUpdatedCallback(func(items.Item) { refresh() }),
		transcript.WithSessionResetCallback(func(sessionID string) {
			logger.Info("Session started", "session_id", sessionID)
			refresh()
		}),
		transcript.WithCallStatusCallback(func(status transcript.CallStatus) {
			logger.Info("Call status changed", "status", status)
			refresh()
			if status == transcript.CallStatusEnded && store != nil {
				go archiveTranscript(ctx, logger, store, session)
			}
		}),
	}
	if gracePeriod, ok := cfg.GracePeriod(); ok {
		opts = append(opts, transcript.WithGracePeriod(gracePeriod))
	}
	if len(cfg.ClosingPhrases) > 0 {
		opts = append(opts, transcript.WithClosingPhrases(cfg.ClosingPhrases...))
	}

	transcriber, err := newFallbackTranscriber(cfg)
	if err != nil {
		return err
	}
	if transcriber != nil {
		opts = append(opts, transcript.WithFallbackTranscriber(transcriber, speechtotext.WithLanguage(cfg.Fallback.Language)))
	}

	session = transcript.NewSession(opts...)
	defer session.Close()
	if withTUI {
		program = tea.NewProgram(tui.New(session), tea.WithAltScreen(), tea.WithContext(ctx))
	}

	serverOpts := []server.ServerOption{}
	if analyzer := newAnalyzer(cfg, logger); analyzer != nil {
		serverOpts = append(serverOpts, server.WithAnalyzer(analyzer))
	}
	if store != nil {
		serverOpts = append(serverOpts, server.WithArchive(store))
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.New(session, serverOpts...).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()

	go func() {
		if err := listen(ctx, cfg, replayPath, session); err != nil {
			logger.Error("Event source stopped", "error", err)
		}
	}()

	if program != nil {
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("Terminal viewer stopped", "error", err)
		}
		stop()
	}
	<-ctx.Done()

	logger.Info("Shutting down")
	session.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config, withTUI bool) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	if withTUI {
		file, err := os.OpenFile("ema-transcript.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = file
		closeLog = func() { file.Close() }
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closeLog, nil
}

func newFallbackTranscriber(cfg *config.Config) (speechtotext.Transcriber, error) {
	switch cfg.FallbackProvider() {
	case config.FallbackProviderOpenAI:
		client, err := sttopenai.NewTranscriptionClient(
			sttopenai.WithAPIKey(cfg.OpenAIAPIKey),
			sttopenai.WithModel(cfg.Fallback.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai transcriber: %w", err)
		}
		return client, nil
	case config.FallbackProviderDeepgram:
		client, err := deepgram.NewTranscriptionClient(
			deepgram.WithAPIKey(cfg.DeepgramAPIKey),
			deepgram.WithModel(cfg.Fallback.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepgram transcriber: %w", err)
		}
		return client, nil
	}
	return nil, nil
}

func newAnalyzer(cfg *config.Config, logger *slog.Logger) analysis.Analyzer {
	analyzer, err := analysisopenai.NewAnalyzer(
		analysisopenai.WithAPIKey(cfg.OpenAIAPIKey),
		analysisopenai.WithModel(cfg.Analysis.Model),
	)
	if err != nil {
		logger.Warn("Call analysis disabled", "error", err)
		return nil
	}
	return analyzer
}

func listen(ctx context.Context, cfg *config.Config, replayPath string, session *transcript.Session) error {
	if replayPath != "" {
		file, err := os.Open(replayPath)
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer file.Close()
		return realtime.Replay(ctx, file, session.Handle)
	}

	if cfg.RealtimeURL == "" {
		slog.Info("No realtime url configured, waiting for events over HTTP")
		return nil
	}
	client, err := realtime.NewClient(
		realtime.WithURL(cfg.RealtimeURL),
		realtime.WithAPIKey(cfg.OpenAIAPIKey),
	)
	if err != nil {
		return err
	}
	return client.Listen(ctx, session.Handle)
}

func archiveTranscript(ctx context.Context, logger *slog.Logger, store *archive.Archive, session *transcript.Session) {
	record := archive.Record{
		SessionID: session.SessionID(),
		Status:    string(session.CallStatus()),
		EndedAt:   time.Now(),
		Items:     session.Snapshot(),
	}
	if _, err := store.Save(context.WithoutCancel(ctx), record); err != nil {
		logger.Error("Failed to archive transcript", "session_id", record.SessionID, "error", err)
	}
}

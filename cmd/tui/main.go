package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"signal-pipeline/internal/app"
	"signal-pipeline/internal/config"
	"signal-pipeline/internal/logger"
	"signal-pipeline/internal/tui"
	"signal-pipeline/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const localLogFile = "tui.log"

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	newLoggerFunc  = logger.NewWithWriter
	openLogFunc    = func() (io.WriteCloser, error) { return tea.LogToFile(localLogFile, "tui") }
	buildAppFunc   = app.Build
	runProgramFunc = func(m tea.Model) error {
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}
	newSSHServerFunc    = tui.NewSSHServer
	startSSHServerFunc  = func(srv *ssh.Server) error { return srv.ListenAndServe() }
	shutdownSSHServerFn = func(srv *ssh.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify   = ossignal.Notify
	waitForSignalFunc   = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	// The local program owns the terminal, so logs go to a file.
	var out io.Writer = os.Stderr
	if cfg.TUIMode == "local" {
		f, err := openLogFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	log := newLoggerFunc(out, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	pipeline := buildAppFunc(ctx, cfg, tracer, log, false)
	defer pipeline.Close()

	svc := tui.Services{Analysis: pipeline.Analysis, Market: pipeline.Market}

	switch cfg.TUIMode {
	case "ssh":
		if err := runSSHMode(cancel, cfg, svc, log); err != nil {
			log.Error().Err(err).Msg("tui ssh server failed")
		}
	default:
		if err := runProgramFunc(tui.NewAppModel(svc)); err != nil {
			log.Error().Err(err).Msg("tui exited with error")
		}
	}
}

func runSSHMode(cancel context.CancelFunc, cfg *config.Config, svc tui.Services, log zerolog.Logger) error {
	addr := net.JoinHostPort(cfg.TUISSHBind, fmt.Sprintf("%d", cfg.TUISSHPort))
	srv, err := newSSHServerFunc(svc, tui.SSHConfig{
		Addr:           addr,
		HostKeyPath:    cfg.TUIHostKeyPath,
		AuthorizedKeys: cfg.TUIAuthorizedKeys,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	if cfg.TUIAuthorizedKeys == "" {
		log.Warn().Msg("TUI_AUTHORIZED_KEYS not set, accepting any ssh client")
	}

	go func() {
		log.Info().Str("addr", addr).Msg("tui ssh server listening")
		if err := startSSHServerFunc(srv); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Error().Err(err).Msg("tui ssh server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownSSHServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("tui ssh server forced to shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"

	"tuimessenger/internal/chat"
	"tuimessenger/internal/config"
	"tuimessenger/internal/logging"
	"tuimessenger/internal/terminal"
)

func runTUI(ctx context.Context, cfg *config.Config) error {
	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	conn, err := dialRelay(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	start := chat.ScreenMain
	if cfg.Username == "" && cfg.Login {
		start = chat.ScreenLoggingIn
	}
	session := chat.NewSession(start)
	if cfg.Username != "" {
		if err := conn.Send(ctx, chat.NameCommand(cfg.Username)); err != nil {
			return fmt.Errorf("announce username: %w", err)
		}
		session.SetUsername(cfg.Username)
	}

	term, err := terminal.Open()
	if err != nil {
		return err
	}
	// Deferred calls also run while a panic unwinds, so the terminal is
	// restored before the runtime prints the trace.
	defer term.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mux := chat.NewMultiplexer(session, conn, conn.Events(), term.Events(runCtx, cancel), term.Renderer(),
		chat.WithLogger(logging.Component(logger, "chat")))
	err = mux.Run(runCtx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("client exiting", "screen", session.Screen().String(), "connected", mux.Connected())
		return nil
	default:
		logger.Error("client failed", "err", err)
		return err
	}
}

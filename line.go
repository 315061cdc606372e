package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"tuimessenger/internal/chat"
	"tuimessenger/internal/config"
)

var (
	ownStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	senderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type lineConn interface {
	chat.Sender
	Events() <-chan chat.RelayEvent
}

// lineClient prints relay traffic and sends stdin lines, one per message.
type lineClient struct {
	conn lineConn
	out  io.Writer

	mu       sync.Mutex
	username string
}

func runLineMode(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
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

	fmt.Fprintf(out, "connected to %s\n", cfg.RelayURL)
	fmt.Fprintln(out, "type /name <username> to set your name, /quit to exit")

	c := &lineClient{conn: conn, out: out}
	if cfg.Username != "" {
		if err := c.send(ctx, chat.NameCommand(cfg.Username)); err != nil {
			return err
		}
	}
	return c.run(ctx, in)
}

// run returns when stdin ends, the relay closes, or ctx is done.
func (c *lineClient) run(ctx context.Context, in io.Reader) error {
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		c.printEvents()
	}()

	inputDone := make(chan error, 1)
	go func() {
		inputDone <- c.readInput(ctx, in)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-relayDone:
		return nil
	case err := <-inputDone:
		return err
	}
}

func (c *lineClient) printEvents() {
	for ev := range c.conn.Events() {
		if ev.Err != nil {
			if errors.Is(ev.Err, io.EOF) {
				c.println(systemStyle.Render("connection closed"))
			} else {
				c.println(errorStyle.Render("connection lost: " + ev.Err.Error()))
			}
			return
		}
		if ev.Identity != "" {
			c.mu.Lock()
			c.username = ev.Identity
			c.mu.Unlock()
			continue
		}
		c.println(c.format(ev.Message))
	}
}

func (c *lineClient) readInput(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if err := c.send(ctx, line); err != nil {
			c.println(errorStyle.Render("send failed: " + err.Error()))
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}

func (c *lineClient) send(ctx context.Context, text string) error {
	if err := c.conn.Send(ctx, text); err != nil {
		return err
	}
	if name, ok := strings.CutPrefix(text, chat.NameCommandPrefix); ok {
		if name = strings.TrimSpace(name); name != "" {
			c.mu.Lock()
			c.username = name
			c.mu.Unlock()
		}
	}
	return nil
}

func (c *lineClient) format(m chat.Message) string {
	c.mu.Lock()
	username := c.username
	c.mu.Unlock()

	switch {
	case m.IsOwn(username):
		return ownStyle.Render("you: " + m.Content)
	case m.Kind == chat.KindChat:
		return senderStyle.Render(m.Sender+":") + " " + m.Content
	default:
		return systemStyle.Render("* " + m.Content)
	}
}

func (c *lineClient) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

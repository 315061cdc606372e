package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tuimessenger/internal/config"
	"tuimessenger/internal/logging"
	"tuimessenger/internal/relay"
)

type options struct {
	configPath  string
	url         string
	username    string
	login       bool
	insecure    bool
	fingerprint string
	logFile     string
	logLevel    string
	dialTimeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "tuimessenger",
		Short: "Chat client for a tuimessenger relay",
		Long: `tuimessenger connects to a relay over websocket. By default it reads lines
from stdin and prints incoming messages; the tui subcommand starts the
full-screen client.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runLineMode(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.bind(root)

	root.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg)
		},
	})
	return root
}

func (o *options) bind(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/tuimessenger/config.yaml)")
	pf.StringVar(&o.url, "url", "", "relay websocket url")
	pf.StringVarP(&o.username, "username", "u", "", "username to announce on connect")
	pf.BoolVar(&o.login, "login", false, "start on the login screen (tui only)")
	pf.BoolVar(&o.insecure, "insecure", false, "accept any relay certificate")
	pf.StringVar(&o.fingerprint, "tls-fingerprint", "", "pin the relay certificate by SHA-256 fingerprint")
	pf.StringVar(&o.logFile, "log-file", "", "log file path, - for stderr")
	pf.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	pf.DurationVar(&o.dialTimeout, "dial-timeout", 0, "relay handshake timeout")
}

// load merges flags that were set on the command line over the config file.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.RelayURL = o.url
	}
	if flags.Changed("username") {
		cfg.Username = o.username
	}
	if flags.Changed("login") {
		cfg.Login = o.login
	}
	if flags.Changed("insecure") {
		cfg.InsecureTLS = o.insecure
	}
	if flags.Changed("tls-fingerprint") {
		cfg.TLSFingerprint = o.fingerprint
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("dial-timeout") {
		cfg.DialTimeout = o.dialTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func openLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	path := cfg.LogFile
	if path == "" {
		path = logging.DefaultPath()
	}
	return logging.Open(path, level)
}

func dialRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*relay.Conn, error) {
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	return relay.Dial(ctx, cfg.RelayURL, relay.Options{
		InsecureSkipVerify: cfg.InsecureTLS,
		CertFingerprint:    cfg.TLSFingerprint,
		HandshakeTimeout:   cfg.DialTimeout,
		Logger:             logging.Component(logger, "relay"),
	})
}

// legacyArgs maps the old "/tui" mode switch onto the tui subcommand.
func legacyArgs(args []string) []string {
	if len(args) > 0 && args[0] == "/tui" {
		return append([]string{"tui"}, args[1:]...)
	}
	return args
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(legacyArgs(os.Args[1:]))
	if err := root.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tuimessenger: %v\n", err)
		stop()
		os.Exit(1)
	}
}

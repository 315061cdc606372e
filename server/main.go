package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tuimessenger/internal/logging"
	"tuimessenger/internal/netsec"
)

const shutdownGrace = 5 * time.Second

type relayFlags struct {
	addr            string
	dbPath          string
	history         int
	tlsCert         string
	tlsKey          string
	selfSigned      bool
	rate            float64
	burst           int
	maxMessageBytes int64
	logLevel        string
}

func newRootCmd() *cobra.Command {
	f := &relayFlags{}
	cmd := &cobra.Command{
		Use:           "tuimessenger-relay",
		Short:         "Websocket chat relay for tuimessenger clients",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "127.0.0.1:8080", "listen address")
	fl.StringVar(&f.dbPath, "db", "", "sqlite history database (empty keeps history in memory)")
	fl.IntVar(&f.history, "history", defaultHistory, "chat messages replayed to new connections")
	fl.StringVar(&f.tlsCert, "tls-cert", "", "TLS certificate file")
	fl.StringVar(&f.tlsKey, "tls-key", "", "TLS private key file")
	fl.BoolVar(&f.selfSigned, "self-signed", false, "create a self-signed certificate at --tls-cert/--tls-key if missing")
	fl.Float64Var(&f.rate, "rate", defaultMsgsPerSec, "messages per second allowed per connection")
	fl.IntVar(&f.burst, "burst", defaultBurstMessages, "burst allowance per connection")
	fl.Int64Var(&f.maxMessageBytes, "max-message-bytes", defaultMaxMessageBytes, "largest accepted message; bigger ones close the connection")
	fl.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

// defaultCertPaths places generated TLS material under ~/.tuimessenger.
func defaultCertPaths() (string, string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("unable to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".tuimessenger")
	return filepath.Join(dir, "relay_cert.pem"), filepath.Join(dir, "relay_key.pem"), nil
}

func (f *relayFlags) tlsConfigured() bool {
	return f.selfSigned || f.tlsCert != "" || f.tlsKey != ""
}

// prepareTLS resolves certificate paths and, with --self-signed, makes sure
// a usable pair exists at them.
func (f *relayFlags) prepareTLS(logger *slog.Logger) error {
	if !f.tlsConfigured() {
		return nil
	}
	if f.tlsCert == "" && f.tlsKey == "" && f.selfSigned {
		cert, key, err := defaultCertPaths()
		if err != nil {
			return err
		}
		f.tlsCert, f.tlsKey = cert, key
	}
	if f.tlsCert == "" || f.tlsKey == "" {
		return errors.New("--tls-cert and --tls-key must be set together")
	}
	if f.selfSigned {
		host, _, err := net.SplitHostPort(f.addr)
		if err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
		hosts := []string{"localhost", "127.0.0.1"}
		if host != "" && host != "0.0.0.0" && host != "::" {
			hosts = append(hosts, host)
		}
		generated, err := netsec.SelfSigned{CertPath: f.tlsCert, KeyPath: f.tlsKey, Hosts: hosts}.Ensure()
		if err != nil {
			return fmt.Errorf("self-signed certificate: %w", err)
		}
		if generated {
			logger.Info("generated self-signed certificate", "cert", f.tlsCert, "key", f.tlsKey, "hosts", hosts)
		}
	}
	return nil
}

func runRelay(ctx context.Context, f *relayFlags) error {
	level, err := logging.ParseLevel(f.logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, level)

	if err := f.prepareTLS(logger); err != nil {
		return err
	}

	var store *sqliteStore
	if strings.TrimSpace(f.dbPath) != "" {
		store, err = openSQLiteStore(f.dbPath, f.history)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer store.Close()
	}

	s, err := NewServer(serverConfig{
		historySize:     f.history,
		maxMessageBytes: f.maxMessageBytes,
		msgsPerSec:      f.rate,
		burst:           f.burst,
	}, store, logging.Component(logger, "hub"))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              f.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	scheme := "ws"
	if f.tlsConfigured() {
		cfg, err := netsec.ServerTLSConfig(f.tlsCert, f.tlsKey)
		if err != nil {
			return fmt.Errorf("load TLS config: %w", err)
		}
		srv.TLSConfig = cfg
		scheme = "wss"
		// Clients pin self-signed relays with --tls-fingerprint.
		logger.Info("relay certificate", "sha256", netsec.Fingerprint(cfg.Certificates[0].Certificate[0]))
	}

	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("listen error: %w", err)
	}
	logger.Info("relay listening", "relay_id", s.id, "url", scheme+"://"+ln.Addr().String()+"/ws",
		"history", f.history, "db", f.dbPath, "rate", f.rate, "burst", f.burst, "max_message_bytes", f.maxMessageBytes)

	return serve(ctx, srv, ln, s, logger)
}

// serve runs srv on ln until ctx is cancelled, then drains connections.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, s *Server, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if srv.TLSConfig != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("relay shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		s.shutdown()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tuimessenger-relay: %v\n", err)
		stop()
		os.Exit(1)
	}
}

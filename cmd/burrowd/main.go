// Command burrowd runs the burrow tunnel gateway: an SSH server that
// accepts reverse port-forwards from developer machines and an HTTP
// server that routes inbound requests to them by subdomain.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/forwardauth"
	"github.com/burrowhq/burrow/internal/httpgateway"
	"github.com/burrowhq/burrow/internal/keysource"
	"github.com/burrowhq/burrow/internal/orchestrator"
	"github.com/burrowhq/burrow/internal/registry"
	"github.com/burrowhq/burrow/internal/sshgateway"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "burrowd: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	logger.Info().
		Str("domain", cfg.Domain).
		Str("ssh_addr", cfg.SSHListenAddr).
		Str("http_addr", cfg.HTTPListenAddr).
		Msg("starting burrowd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys := keysource.New(cfg.LDAPAddress, cfg.LDAPBase, cfg.LDAPBindDN, cfg.LDAPPassword)
	reg := registry.New(cfg.Domain)

	sshSrv, err := sshgateway.New(sshgateway.Config{
		ListenAddr:  cfg.SSHListenAddr,
		HostKeyPath: cfg.HostKeyPath,
		KeySource:   keys,
		Registry:    reg,
		Logger:      logger.With().Str("component", "sshgateway").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start ssh gateway")
	}

	auth := forwardauth.New(cfg.AuthzEndpoint)
	svc := httpgateway.New(reg, auth, logger.With().Str("component", "httpgateway").Logger())
	httpSrv := &http.Server{
		Addr:    cfg.HTTPListenAddr,
		Handler: svc,
	}

	o := orchestrator.New(sshSrv, httpSrv, logger)
	if err := o.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("burrowd exited with error")
	}

	logger.Info().Msg("burrowd stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.With().Timestamp().Logger()
}

// Package orchestrator wires the gateway's long-running components
// together under one cancellable context and brings them down in order
// when that context ends.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/burrowhq/burrow/internal/sshgateway"
)

// httpShutdownGrace bounds how long the HTTP gateway waits for in-flight
// requests to finish during shutdown.
const httpShutdownGrace = 5 * time.Second

// Orchestrator runs the SSH gateway and HTTP gateway together, starting
// both and stopping both when its context is cancelled.
type Orchestrator struct {
	sshServer  *sshgateway.Server
	httpServer *http.Server
	logger     zerolog.Logger
}

// New returns an Orchestrator running sshServer and httpServer.
func New(sshServer *sshgateway.Server, httpServer *http.Server, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{sshServer: sshServer, httpServer: httpServer, logger: logger}
}

// Run starts both servers and blocks until ctx is cancelled, then shuts
// both down. The first component to fail cancels the others via the
// shared errgroup context; Run returns that error once every component
// has stopped.
func (o *Orchestrator) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return o.sshServer.ListenAndServe(egCtx)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		o.logger.Info().Msg("ssh gateway stopping")
		return nil
	})

	eg.Go(func() error {
		if err := o.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("orchestrator: http gateway: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
		defer cancel()

		o.logger.Info().Msg("http gateway draining")
		if err := o.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("orchestrator: http gateway shutdown: %w", err)
		}
		return nil
	})

	return eg.Wait()
}

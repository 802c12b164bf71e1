package orchestrator

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/burrowhq/burrow/internal/registry"
	"github.com/burrowhq/burrow/internal/sshgateway"
)

type noKeys struct{}

func (noKeys) GetSSHKeys(ctx context.Context, username string) ([]ssh.PublicKey, error) {
	return nil, nil
}

func TestOrchestrator_RunStopsOnCancel(t *testing.T) {
	reg := registry.New("example.com")
	hostKeyPath := filepath.Join(t.TempDir(), "host_key")

	sshSrv, err := sshgateway.New(sshgateway.Config{
		ListenAddr:  "127.0.0.1:0",
		HostKeyPath: hostKeyPath,
		KeySource:   noKeys{},
		Registry:    reg,
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("sshgateway.New() error = %v", err)
	}

	httpSrv := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.NotFoundHandler(),
	}

	o := New(sshSrv, httpSrv, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

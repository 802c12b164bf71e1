// Package sshgateway is the SSH-facing half of the tunnel gateway: it
// accepts developer connections, authenticates them against a KeySource,
// and for each session runs a Handler that turns remote-port-forward
// requests into registered tunnels and renders a TUI over the session's
// PTY.
package sshgateway

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"

	"github.com/burrowhq/burrow/internal/keysource"
	"github.com/burrowhq/burrow/internal/registry"
)

// defaultRateLimit caps new TCP connections accepted per second, guarding
// against a client hammering the listener with handshake attempts.
const defaultRateLimit rate.Limit = 10

// defaultMaxPending caps concurrent unauthenticated SSH handshakes.
const defaultMaxPending = 50

// handshakeTimeout bounds the SSH handshake and public-key auth; cleared
// once authentication succeeds since tunnels are meant to be long-lived.
const handshakeTimeout = 15 * time.Second

// authLookupTimeout bounds how long a single public-key auth attempt may
// spend consulting the KeySource (e.g. an LDAP round trip).
const authLookupTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	// ListenAddr is the address to accept SSH connections on, e.g. ":2222".
	ListenAddr string
	// HostKeyPath is where the server's persistent Ed25519 host key is
	// stored; a new key is generated and saved there if the file is
	// absent.
	HostKeyPath string
	// KeySource resolves which public keys a username may authenticate
	// with.
	KeySource keysource.KeySource
	// Registry is the shared tunnel table new sessions register into.
	Registry *registry.Registry
	// Logger receives structured server and session logs.
	Logger zerolog.Logger
	// RateLimit overrides defaultRateLimit when non-zero.
	RateLimit rate.Limit
	// MaxPending overrides defaultMaxPending when non-zero.
	MaxPending int
}

// Server is the SSH entry point for the gateway.
type Server struct {
	cfg Config

	sshCfg  *ssh.ServerConfig
	limiter *rate.Limiter
	sem     chan struct{}
}

// New builds a Server from cfg, loading or generating its host key.
func New(cfg Config) (*Server, error) {
	if cfg.KeySource == nil {
		return nil, errors.New("sshgateway: Config.KeySource must not be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("sshgateway: Config.Registry must not be nil")
	}

	s := &Server{cfg: cfg}

	rl := cfg.RateLimit
	if rl == 0 {
		rl = defaultRateLimit
	}
	s.limiter = rate.NewLimiter(rl, int(rl)+1)

	mp := cfg.MaxPending
	if mp == 0 {
		mp = defaultMaxPending
	}
	s.sem = make(chan struct{}, mp)

	hostKey, err := loadOrGenerateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, err
	}

	sshCfg := &ssh.ServerConfig{
		PublicKeyCallback: s.authenticate,
		ServerVersion:     "SSH-2.0-burrow",
	}
	sshCfg.AddHostKey(hostKey)
	s.sshCfg = sshCfg

	return s, nil
}

// ListenAndServe accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.ListenAddr
	if addr == "" {
		addr = ":2222"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sshgateway: listen %s: %w", addr, err)
	}
	s.cfg.Logger.Info().Str("addr", addr).Msg("ssh gateway listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		if !s.limiter.Allow() {
			_ = conn.Close()
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			_ = conn.Close()
			continue
		}

		go func() {
			defer func() { <-s.sem }()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshCfg)
	if err != nil {
		s.cfg.Logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("ssh handshake failed")
		return
	}
	defer sshConn.Close()

	_ = conn.SetDeadline(time.Time{})

	logger := s.cfg.Logger.With().Str("user", sshConn.User()).Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Info().Msg("session authenticated")
	defer logger.Info().Msg("session closed")

	handler := newHandler(sshConn, s.cfg.Registry, logger)
	handler.run(chans, reqs)
}

// authenticate looks up the candidate key among the ones registered to
// the connecting username and accepts only an exact match.
func (s *Server) authenticate(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	ctx, cancel := context.WithTimeout(context.Background(), authLookupTimeout)
	defer cancel()

	keys, err := s.cfg.KeySource.GetSSHKeys(ctx, conn.User())
	if err != nil {
		return nil, fmt.Errorf("sshgateway: look up keys for %q: %w", conn.User(), err)
	}

	marshaled := key.Marshal()
	for _, candidate := range keys {
		if string(candidate.Marshal()) == string(marshaled) {
			return nil, nil
		}
	}

	return nil, fmt.Errorf("sshgateway: no matching key for user %q", conn.User())
}

// loadOrGenerateHostKey reads an Ed25519 host key from path, generating
// and persisting a new one if the file does not exist. An empty path means
// no PRIVATE_KEY_FILE was configured: a key is generated but kept only in
// memory, per spec.md §6 ("if absent, an ephemeral key is generated").
func loadOrGenerateHostKey(path string) (ssh.Signer, error) {
	if path == "" {
		return generateHostKey()
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("sshgateway: read host key %s: %w", path, err)
	}

	if err == nil {
		if b, _ := pem.Decode(data); b == nil {
			return nil, fmt.Errorf("sshgateway: host key file %s contains no PEM block", path)
		}
		key, err := ssh.ParseRawPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("sshgateway: parse host key: %w", err)
		}
		return ssh.NewSignerFromKey(key)
	}

	signer, priv, err := newEd25519Signer()
	if err != nil {
		return nil, err
	}

	pemBytes, err := EncodeEd25519PEM(priv)
	if err != nil {
		return nil, fmt.Errorf("sshgateway: encode host key: %w", err)
	}
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return nil, fmt.Errorf("sshgateway: write host key: %w", err)
	}

	return signer, nil
}

// generateHostKey returns a fresh, unpersisted Ed25519 host key.
func generateHostKey() (ssh.Signer, error) {
	signer, _, err := newEd25519Signer()
	return signer, err
}

func newEd25519Signer() (ssh.Signer, ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("sshgateway: generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("sshgateway: wrap host key: %w", err)
	}
	return signer, priv, nil
}

// EncodeEd25519PEM marshals an Ed25519 private key to OpenSSH PEM format.
// Exported so cmd/burrow-keygen can reuse it to produce client keys in the
// same format the gateway uses for its own host key.
func EncodeEd25519PEM(priv ed25519.PrivateKey) ([]byte, error) {
	key, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(key), nil
}

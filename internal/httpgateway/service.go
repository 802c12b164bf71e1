// Package httpgateway is the HTTP-facing half of the tunnel gateway: it
// resolves an inbound request's Host header to a registered tunnel,
// enforces that tunnel's access level (gating non-public tunnels behind
// forward-auth), and forwards the request over the SSH-backed connection
// the tunnel provides.
package httpgateway

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/burrowhq/burrow/internal/forwardauth"
	"github.com/burrowhq/burrow/internal/registry"
)

// Service is the http.Handler for all inbound tunnel traffic; one
// instance serves every hostname registered under the gateway's apex
// domain.
type Service struct {
	registry *registry.Registry
	auth     *forwardauth.ForwardAuth
	logger   zerolog.Logger
}

// New returns a Service that resolves tunnels through reg and gates
// protected ones through auth.
func New(reg *registry.Registry, auth *forwardauth.ForwardAuth, logger zerolog.Logger) *Service {
	return &Service{registry: reg, auth: auth, logger: logger}
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authority := r.Host
	if authority == "" {
		writeResponse(w, http.StatusBadRequest, "Missing or invalid authority or host header")
		return
	}

	logger := s.logger.With().Str("authority", authority).Logger()

	tunnel, ok := s.registry.Get(authority)
	if !ok {
		logger.Debug().Msg("unknown tunnel")
		writeResponse(w, http.StatusNotFound, "Unknown tunnel")
		return
	}

	if !tunnel.IsPublic() {
		if !s.authorize(w, r, tunnel, logger) {
			return
		}
	}

	conn, err := tunnel.Open()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open tunnel")
		writeResponse(w, http.StatusInternalServerError, "Failed to open tunnel")
		return
	}
	defer conn.Close()

	if err := s.forward(w, r, conn, logger); err != nil {
		logger.Warn().Err(err).Msg("forwarding request failed")
	}
}

// authorize runs the forward-auth check for a non-public tunnel and
// enforces ownership for private ones. It writes a response and returns
// false if the request should not proceed any further.
func (s *Service) authorize(w http.ResponseWriter, r *http.Request, tunnel *registry.TunnelInner, logger zerolog.Logger) bool {
	status, err := s.auth.Check(r.Header)
	if err != nil {
		logger.Error().Err(err).Msg("forward-auth check failed")
		writeResponse(w, http.StatusForbidden, "Unexpected error during authentication")
		return false
	}

	switch status.Kind {
	case forwardauth.Unauthenticated:
		w.Header().Set("Location", status.Location)
		w.WriteHeader(http.StatusFound)
		return false
	case forwardauth.Unauthorized:
		writeResponse(w, http.StatusForbidden, "You do not have permission to access this tunnel")
		return false
	}

	access := tunnel.Access()
	if access.Kind == registry.AccessPrivate && !status.User.Is(access.Owner) {
		writeResponse(w, http.StatusForbidden, "You do not have permission to access this tunnel")
		return false
	}

	return true
}

// forward writes r to conn as an HTTP/1.1 request, reads back a response,
// and either streams it to w or, if both sides agree on an Upgrade,
// splices the two connections together byte for byte.
func (s *Service) forward(w http.ResponseWriter, r *http.Request, conn net.Conn, logger zerolog.Logger) error {
	outReq := r.Clone(r.Context())
	outReq.RequestURI = ""
	outReq.Close = false

	if err := outReq.Write(conn); err != nil {
		return fmt.Errorf("write request to tunnel: %w", err)
	}

	tunnelReader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(tunnelReader, outReq)
	if err != nil {
		return fmt.Errorf("read response from tunnel: %w", err)
	}
	defer resp.Body.Close()

	requestedUpgrade := r.Header.Get("Upgrade")
	if resp.StatusCode == http.StatusSwitchingProtocols &&
		requestedUpgrade != "" &&
		strings.EqualFold(requestedUpgrade, resp.Header.Get("Upgrade")) {
		return s.spliceUpgrade(w, resp, conn, tunnelReader, logger)
	}

	header := w.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, err = io.Copy(w, resp.Body)
	return err
}

// spliceUpgrade hijacks the inbound HTTP connection, replays the tunnel's
// 101 response onto it, and copies bytes transparently in both directions
// from then on — the gateway has no opinion about what protocol runs over
// an agreed-upon Upgrade, so it never decodes the stream.
func (s *Service) spliceUpgrade(w http.ResponseWriter, resp *http.Response, tunnelConn net.Conn, tunnelReader *bufio.Reader, logger zerolog.Logger) error {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return errors.New("response writer does not support hijacking")
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		return fmt.Errorf("hijack client connection: %w", err)
	}
	defer clientConn.Close()

	if _, err := fmt.Fprintf(clientBuf.Writer, "HTTP/1.1 %s\r\n", resp.Status); err != nil {
		return fmt.Errorf("write upgrade status line: %w", err)
	}
	for key, values := range resp.Header {
		for _, v := range values {
			if _, err := fmt.Fprintf(clientBuf.Writer, "%s: %s\r\n", key, v); err != nil {
				return fmt.Errorf("write upgrade headers: %w", err)
			}
		}
	}
	if _, err := clientBuf.Writer.WriteString("\r\n"); err != nil {
		return fmt.Errorf("write upgrade header terminator: %w", err)
	}
	if err := clientBuf.Writer.Flush(); err != nil {
		return fmt.Errorf("flush upgrade response: %w", err)
	}

	logger.Debug().Msg("upgrade established, splicing connection")

	var wg sync.WaitGroup
	wg.Add(2)

	var rx, tx int64
	go func() {
		defer wg.Done()
		rx, _ = io.Copy(tunnelConn, io.MultiReader(clientBuf.Reader, clientConn))
	}()
	go func() {
		defer wg.Done()
		tx, _ = io.Copy(clientConn, io.MultiReader(tunnelReader, tunnelConn))
	}()
	wg.Wait()

	logger.Debug().Int64("rx", rx).Int64("tx", tx).Msg("upgraded connection closed")
	return nil
}

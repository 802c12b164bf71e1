package registry

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/burrowhq/burrow/internal/stats"
)

// forwardedTCPPayload is the RFC 4254 §7.2 "forwarded-tcpip" channel-open
// payload: the address/port the listener was bound to, followed by the
// address/port of the connection that triggered the forward. The gateway
// always reports the internal address/port it was asked to forward as both
// the listener and the originator, since it has no real peer socket to
// describe.
type forwardedTCPPayload struct {
	Addr       string
	Port       uint32
	OriginAddr string
	OriginPort uint32
}

// ChannelOpener is the subset of ssh.Conn a tunnel needs to open a
// forwarded-tcpip channel back to the developer's SSH client. Satisfied by
// *ssh.ServerConn; narrowed to an interface so tunnel tests can supply a
// fake.
type ChannelOpener interface {
	OpenChannel(name string, data []byte) (ssh.Channel, <-chan *ssh.Request, error)
}

// TunnelInner holds the mutable, sharable state of a registered tunnel: the
// means of reaching the developer's forwarded service, and the access level
// gating it. It is the value stored in the Registry's map, so HTTP requests
// can look it up and open connections long after the Tunnel that created it
// has gone out of scope, as long as the underlying SSH session stays open.
type TunnelInner struct {
	conn            ChannelOpener
	internalAddress string
	port            uint32

	mu     sync.RWMutex
	access Access

	Stats *stats.Stats
}

func newTunnelInner(conn ChannelOpener, internalAddress string, port uint32, access Access) *TunnelInner {
	return &TunnelInner{
		conn:            conn,
		internalAddress: internalAddress,
		port:            port,
		access:          access,
		Stats:           &stats.Stats{},
	}
}

// Open asks the SSH client to open a forwarded-tcpip channel back to the
// service it is forwarding, and returns it wrapped as a net.Conn that keeps
// Stats current.
func (t *TunnelInner) Open() (net.Conn, error) {
	t.Stats.AddConnection()

	payload := forwardedTCPPayload{
		Addr:       t.internalAddress,
		Port:       t.port,
		OriginAddr: t.internalAddress,
		OriginPort: t.port,
	}

	channel, requests, err := t.conn.OpenChannel("forwarded-tcpip", ssh.Marshal(&payload))
	if err != nil {
		return nil, fmt.Errorf("open forwarded-tcpip channel to %s:%d: %w", t.internalAddress, t.port, err)
	}
	go ssh.DiscardRequests(requests)

	return stats.NewWrapper(channel, t.Stats), nil
}

// Access returns the tunnel's current access level.
func (t *TunnelInner) Access() Access {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.access
}

// IsPublic reports whether the tunnel currently bypasses forward-auth.
func (t *TunnelInner) IsPublic() bool {
	return t.Access().Kind == AccessPublic
}

// SetAccess updates the tunnel's access level.
func (t *TunnelInner) SetAccess(access Access) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access = access
}

// InternalAddress returns the host the tunnel forwards to, as given by the
// developer's remote-forward request (usually "localhost").
func (t *TunnelInner) InternalAddress() string { return t.internalAddress }

// Port returns the port the tunnel forwards to.
func (t *TunnelInner) Port() uint32 { return t.port }

// Tunnel is the handle an SSH session holds on a registered tunnel. Unlike
// the inner state, it is owned by exactly one session and is not meant to
// be shared: it carries the registry bookkeeping (current name and fqdn)
// needed to rename or tear the tunnel down.
type Tunnel struct {
	Inner *TunnelInner

	registry *Registry

	mu      sync.Mutex
	name    string
	address string // fqdn once registered; empty when detached
}

// Name returns the tunnel's current name (the subdomain label, without the
// apex domain).
func (t *Tunnel) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// Address returns the tunnel's fully-qualified address and whether it is
// currently registered under it. A tunnel can be unregistered ("detached")
// when its requested name collided with one already in use.
func (t *Tunnel) Address() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.address, t.address != ""
}

// SetName renames the tunnel, re-registering it under the new name. If the
// new name collides, the tunnel becomes detached just as it would on an
// initial registration collision.
func (t *Tunnel) SetName(name string) {
	t.registry.rename(t, name)
}

// Retry re-attempts registration under the tunnel's current name. Useful
// after a detached tunnel's name has presumably freed up.
func (t *Tunnel) Retry() {
	t.registry.register(t)
}

// Close unregisters the tunnel from its registry. It is the caller's
// responsibility to invoke Close, typically from the owning SSH session's
// teardown path, since Go has no destructor to do this automatically.
// Calling it again on an already-closed tunnel is a no-op.
func (t *Tunnel) Close() {
	t.registry.unregister(t)
}

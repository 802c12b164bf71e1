// Package registry maps tunnel names to the live SSH sessions serving them.
// A tunnel is registered under an fqdn built from its name and the
// gateway's apex domain; the HTTP gateway resolves an inbound request's
// Host header through the same map to find where to forward it.
package registry

import (
	"sync"

	"github.com/burrowhq/burrow/internal/names"
)

// maxNameAttempts bounds the resampling loop used to find a free
// pool-derived name. Collisions are vanishingly unlikely with a pool this
// size and any reasonable number of concurrent tunnels; the cap exists so a
// pathological case fails a registration instead of spinning forever.
const maxNameAttempts = 1000

// Registry is the shared table of fqdn -> tunnel for one gateway. The zero
// value is not usable; construct with New.
type Registry struct {
	mu      sync.RWMutex
	tunnels map[string]*TunnelInner
	domain  string
}

// New returns a Registry whose tunnels are addressed as "<name>.<domain>".
func New(domain string) *Registry {
	return &Registry{
		tunnels: make(map[string]*TunnelInner),
		domain:  domain,
	}
}

func (r *Registry) address(name string) string {
	return name + "." + r.domain
}

// generateName draws a name from the pool that is not currently registered.
// The check is advisory: register still re-checks under its own lock before
// inserting, so a race between two sessions picking the same free name is
// resolved correctly (one of them is detached), just as it would be with an
// explicit internal address.
func (r *Registry) generateName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 0; i < maxNameAttempts; i++ {
		candidate := names.Random()
		if _, exists := r.tunnels[r.address(candidate)]; !exists {
			return candidate
		}
	}
	return names.Random()
}

// Create builds a new tunnel forwarding to internalAddress:port over conn,
// at the given access level, and attempts to register it immediately. The
// returned Tunnel may be detached (see Tunnel.Address) if its name was
// already taken; callers should check and may call Retry or SetName.
func (r *Registry) Create(conn ChannelOpener, internalAddress string, port uint32, access Access) *Tunnel {
	t := &Tunnel{
		Inner:    newTunnelInner(conn, internalAddress, port, access),
		registry: r,
	}
	r.register(t)
	return t
}

// register assigns t a name if it doesn't have one yet (a generated pool
// name for tunnels forwarding "localhost", otherwise the literal internal
// address) and attempts to claim the corresponding fqdn. If the fqdn is
// already taken, t is left detached (Address returns ok=false) rather than
// erroring, matching the original registry's fire-and-forget semantics.
func (r *Registry) register(t *Tunnel) {
	t.mu.Lock()
	if t.name == "" {
		if t.Inner.InternalAddress() == "localhost" {
			t.name = r.generateName()
		} else {
			t.name = t.Inner.InternalAddress()
		}
	}
	name := t.name
	alreadyRegistered := t.address != ""
	t.mu.Unlock()

	if alreadyRegistered {
		return
	}

	address := r.address(name)

	r.mu.Lock()
	_, taken := r.tunnels[address]
	if !taken {
		r.tunnels[address] = t.Inner
	}
	r.mu.Unlock()

	t.mu.Lock()
	if taken {
		t.address = ""
	} else {
		t.address = address
	}
	t.mu.Unlock()
}

// rename unregisters t from its current address (if any), assigns it the
// new name, and attempts registration under that name.
func (r *Registry) rename(t *Tunnel, name string) {
	t.mu.Lock()
	oldAddress := t.address
	t.address = ""
	t.name = name
	t.mu.Unlock()

	if oldAddress != "" {
		r.mu.Lock()
		delete(r.tunnels, oldAddress)
		r.mu.Unlock()
	}

	r.register(t)
}

// unregister removes t from the table if it is currently registered. Safe
// to call on an already-detached tunnel.
func (r *Registry) unregister(t *Tunnel) {
	t.mu.Lock()
	address := t.address
	t.address = ""
	t.mu.Unlock()

	if address == "" {
		return
	}

	r.mu.Lock()
	delete(r.tunnels, address)
	r.mu.Unlock()
}

// Get looks up a tunnel by its fully-qualified address, as extracted from
// an inbound HTTP request's Host header.
func (r *Registry) Get(address string) (*TunnelInner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inner, ok := r.tunnels[address]
	return inner, ok
}

package registry

import (
	"testing"

	"golang.org/x/crypto/ssh"
)

// fakeConn is a no-op ChannelOpener; tunnel open behavior is exercised by
// the httpgateway tests, these tests only care about registration.
type fakeConn struct{}

func (fakeConn) OpenChannel(name string, data []byte) (ssh.Channel, <-chan *ssh.Request, error) {
	return nil, nil, nil
}

func TestRegistry_RegisterGeneratedName(t *testing.T) {
	r := New("example.com")

	tunnel := r.Create(fakeConn{}, "localhost", 8080, Public())

	address, ok := tunnel.Address()
	if !ok {
		t.Fatalf("tunnel was not registered")
	}
	if tunnel.Name() == "" {
		t.Fatalf("tunnel has no name")
	}
	if want := tunnel.Name() + ".example.com"; address != want {
		t.Fatalf("Address() = %q, want %q", address, want)
	}

	inner, ok := r.Get(address)
	if !ok {
		t.Fatalf("Get(%q) not found", address)
	}
	if inner != tunnel.Inner {
		t.Fatalf("Get(%q) returned a different TunnelInner", address)
	}
}

func TestRegistry_RegisterExplicitName(t *testing.T) {
	r := New("example.com")

	tunnel := r.Create(fakeConn{}, "myservice", 3000, Protected())

	if got, want := tunnel.Name(), "myservice"; got != want {
		t.Fatalf("Name() = %q, want %q", got, want)
	}
	address, ok := tunnel.Address()
	if !ok || address != "myservice.example.com" {
		t.Fatalf("Address() = (%q, %v), want (myservice.example.com, true)", address, ok)
	}
}

func TestRegistry_CollisionDetaches(t *testing.T) {
	r := New("example.com")

	first := r.Create(fakeConn{}, "api", 80, Public())
	second := r.Create(fakeConn{}, "api", 80, Public())

	if _, ok := first.Address(); !ok {
		t.Fatalf("first tunnel should be registered")
	}
	if _, ok := second.Address(); ok {
		t.Fatalf("second tunnel should be detached on name collision")
	}
}

func TestRegistry_RetryAfterClose(t *testing.T) {
	r := New("example.com")

	first := r.Create(fakeConn{}, "api", 80, Public())
	second := r.Create(fakeConn{}, "api", 80, Public())

	first.Close()
	second.Retry()

	address, ok := second.Address()
	if !ok {
		t.Fatalf("second tunnel should register after first closed")
	}
	if address != "api.example.com" {
		t.Fatalf("Address() = %q, want api.example.com", address)
	}

	if _, ok := r.Get("api.example.com"); !ok {
		t.Fatalf("registry should contain api.example.com")
	}
}

func TestTunnel_SetNameRenames(t *testing.T) {
	r := New("example.com")

	tunnel := r.Create(fakeConn{}, "api", 80, Public())
	oldAddress, _ := tunnel.Address()

	tunnel.SetName("renamed")

	if _, ok := r.Get(oldAddress); ok {
		t.Fatalf("old address %q should no longer resolve", oldAddress)
	}

	newAddress, ok := tunnel.Address()
	if !ok || newAddress != "renamed.example.com" {
		t.Fatalf("Address() = (%q, %v), want (renamed.example.com, true)", newAddress, ok)
	}
}

func TestTunnel_CloseUnregisters(t *testing.T) {
	r := New("example.com")

	tunnel := r.Create(fakeConn{}, "api", 80, Public())
	address, _ := tunnel.Address()

	tunnel.Close()

	if _, ok := r.Get(address); ok {
		t.Fatalf("tunnel should be unregistered after Close")
	}
	if _, ok := tunnel.Address(); ok {
		t.Fatalf("Address() should report detached after Close")
	}

	// Close is safe to call more than once.
	tunnel.Close()
}

func TestTunnelInner_AccessLevel(t *testing.T) {
	inner := newTunnelInner(fakeConn{}, "localhost", 8080, Private("alice"))

	if inner.IsPublic() {
		t.Fatalf("private tunnel reported as public")
	}
	if got := inner.Access(); got.Kind != AccessPrivate || got.Owner != "alice" {
		t.Fatalf("Access() = %+v, want Private(alice)", got)
	}

	inner.SetAccess(Public())
	if !inner.IsPublic() {
		t.Fatalf("tunnel should be public after SetAccess")
	}
}

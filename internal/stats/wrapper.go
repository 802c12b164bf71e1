package stats

import (
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// channelAddr satisfies net.Addr for the synthetic endpoints of an SSH
// channel, which has no real socket address of its own.
type channelAddr string

func (a channelAddr) Network() string { return "ssh-channel" }
func (a channelAddr) String() string  { return string(a) }

// Wrapper adapts an SSH "forwarded-tcpip" channel into a net.Conn, counting
// bytes as they cross the wire so a tunnel's Stats stay current without the
// HTTP gateway needing to know anything about SSH.
//
// Naming follows the data direction from the HTTP client's point of view:
// AddTxBytes on Read (bytes flowing out of the tunnel, to the HTTP client)
// and AddRxBytes on Write (bytes flowing into the tunnel, from the HTTP
// client). Counters are only updated on successful operations.
type Wrapper struct {
	ch    ssh.Channel
	stats *Stats
}

// NewWrapper returns a net.Conn view of ch that updates stats on every
// successful read and write.
func NewWrapper(ch ssh.Channel, stats *Stats) *Wrapper {
	return &Wrapper{ch: ch, stats: stats}
}

func (w *Wrapper) Read(p []byte) (int, error) {
	n, err := w.ch.Read(p)
	if err == nil {
		w.stats.AddTxBytes(n)
	}
	return n, err
}

func (w *Wrapper) Write(p []byte) (int, error) {
	n, err := w.ch.Write(p)
	if err == nil {
		w.stats.AddRxBytes(n)
	}
	return n, err
}

// ReadFrom is not implemented by ssh.Channel's vectored path in the x/crypto
// API; Write already counts the aggregate bytes written, so a caller using
// io.Copy with a buffer gets correct counters without needing io.ReaderFrom.

func (w *Wrapper) Close() error {
	return w.ch.Close()
}

func (w *Wrapper) LocalAddr() net.Addr  { return channelAddr("tunnel") }
func (w *Wrapper) RemoteAddr() net.Addr { return channelAddr("tunnel") }

// Deadlines are not supported for an SSH channel multiplexed over a single
// TCP connection; these setters are no-ops that always return nil.
func (w *Wrapper) SetDeadline(t time.Time) error      { return nil }
func (w *Wrapper) SetReadDeadline(t time.Time) error  { return nil }
func (w *Wrapper) SetWriteDeadline(t time.Time) error { return nil }

var _ net.Conn = (*Wrapper)(nil)

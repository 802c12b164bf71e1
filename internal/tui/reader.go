package tui

import (
	"io"
	"sync"
)

// blockingReader is an io.Reader that never yields data until closed, at
// which point it reports io.EOF. bubbletea's own input loop needs
// something to block on, but the real PTY bytes are read directly by the
// SSH handler (which decodes keystrokes and drives the model via Send),
// so handing bubbletea the genuine channel would mean two readers racing
// over the same stream.
type blockingReader struct {
	closed chan struct{}
	once   sync.Once
}

func newBlockingReader() *blockingReader {
	return &blockingReader{closed: make(chan struct{})}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.closed
	return 0, io.EOF
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

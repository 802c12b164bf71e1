package sshgateway

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh"

	"github.com/burrowhq/burrow/internal/registry"
	"github.com/burrowhq/burrow/internal/tui"
)

// Handler owns one authenticated SSH session: the tunnels it has opened,
// the developer's current selection and rename-input state, and the TUI
// rendering it over the session's PTY, if one was requested. All input
// interpretation happens here; internal/tui only ever receives pure
// display commands.
type Handler struct {
	conn     *ssh.ServerConn
	username string
	registry *registry.Registry
	logger   zerolog.Logger

	mu          sync.Mutex
	tunnels     []*registry.Tunnel
	selected    *int
	renameInput *string
	renderer    *tui.Renderer
}

func newHandler(conn *ssh.ServerConn, reg *registry.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		conn:     conn,
		username: conn.User(),
		registry: reg,
		logger:   logger,
	}
}

// run services a session's channels and global requests until both are
// closed by the remote end, then tears down every tunnel the session
// opened.
func (h *Handler) run(chans <-chan ssh.NewChannel, reqs <-chan *ssh.Request) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.handleGlobalRequests(reqs)
	}()

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			h.logger.Warn().Err(err).Msg("accept channel")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.serveSessionChannel(channel, requests)
		}()
	}

	wg.Wait()
	h.teardown()
}

// handleGlobalRequests answers "tcpip-forward" requests by registering a
// new tunnel, always reporting success (even when the requested name
// collided and the tunnel is detached) so the client's SSH implementation
// doesn't tear down the whole connection; a detached tunnel can still be
// retried from the TUI.
func (h *Handler) handleGlobalRequests(reqs <-chan *ssh.Request) {
	for req := range reqs {
		if req.Type != "tcpip-forward" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload tcpipForwardPayload
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			h.logger.Warn().Err(err).Msg("malformed tcpip-forward request")
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		tunnel := h.registry.Create(h.conn, payload.Addr, payload.Port, registry.Private(h.username))

		h.mu.Lock()
		h.tunnels = append(h.tunnels, tunnel)
		h.mu.Unlock()
		h.refreshRows()

		if req.WantReply {
			var reply [4]byte
			binary.BigEndian.PutUint32(reply[:], payload.Port)
			_ = req.Reply(true, reply[:])
		}
	}
}

func (h *Handler) serveSessionChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			var payload ptyRequestPayload
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				if req.WantReply {
					_ = req.Reply(false, nil)
				}
				continue
			}

			h.mu.Lock()
			h.renderer = tui.Start(channel)
			h.mu.Unlock()
			h.renderer.Resize(int(payload.Columns), int(payload.Rows))
			h.refreshRows()

			go h.readInput(channel)

			go func(renderer *tui.Renderer) {
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-renderer.Done():
						_ = channel.Close()
						return
					case <-ticker.C:
						h.refreshRows()
					}
				}
			}(h.getRenderer())

			if req.WantReply {
				_ = req.Reply(true, nil)
			}

		case "window-change":
			var payload windowChangePayload
			if err := ssh.Unmarshal(req.Payload, &payload); err == nil {
				if r := h.getRenderer(); r != nil {
					r.Resize(int(payload.Columns), int(payload.Rows))
				}
			}

		case "exec":
			var payload execPayload
			if err := ssh.Unmarshal(req.Payload, &payload); err == nil {
				h.handleExec(payload.Command)
			}
			if req.WantReply {
				_ = req.Reply(true, nil)
			}

		case "shell":
			if req.WantReply {
				_ = req.Reply(true, nil)
			}

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}

	if r := h.getRenderer(); r != nil {
		r.Stop()
	}
}

func (h *Handler) getRenderer() *tui.Renderer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renderer
}

// readInput decodes raw PTY bytes and dispatches them to handleInput until
// the channel is closed.
func (h *Handler) readInput(channel ssh.Channel) {
	buf := make([]byte, 64)
	for {
		n, err := channel.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		h.handleInput(DecodeInput(buf[:n]))
	}
}

func (h *Handler) handleInput(input Input) {
	h.mu.Lock()
	renaming := h.renameInput != nil
	h.mu.Unlock()

	if renaming {
		h.handleRenameInput(input)
		return
	}

	switch input.Kind {
	case InputChar:
		switch input.Rune {
		case 'q':
			if r := h.getRenderer(); r != nil {
				r.Close()
			}
		case 'k':
			h.selectPrevious()
		case 'j':
			h.selectNext()
		case 'P':
			h.setAccessSelection(registry.Public())
		case 'p':
			h.setAccessSelection(registry.Private(h.username))
		case 'R':
			h.retrySelected()
		case 'r':
			h.startRename()
		}
	case InputUp:
		h.selectPrevious()
	case InputDown:
		h.selectNext()
	case InputEsc:
		h.mu.Lock()
		h.selected = nil
		h.mu.Unlock()
		if r := h.getRenderer(); r != nil {
			r.Select(nil)
		}
	case InputDelete:
		h.deleteSelected()
	case InputCtrlP:
		h.setAccessSelection(registry.Protected())
	}
}

func (h *Handler) handleRenameInput(input Input) {
	switch input.Kind {
	case InputChar:
		if unicode.IsLetter(input.Rune) || unicode.IsDigit(input.Rune) {
			h.mu.Lock()
			if h.renameInput != nil {
				*h.renameInput += strings.ToLower(string(input.Rune))
			}
			buf := h.renameInput
			h.mu.Unlock()
			if r := h.getRenderer(); r != nil {
				r.Rename(buf)
			}
		}
	case InputBackspace:
		h.mu.Lock()
		if h.renameInput != nil && len(*h.renameInput) > 0 {
			*h.renameInput = (*h.renameInput)[:len(*h.renameInput)-1]
		}
		buf := h.renameInput
		h.mu.Unlock()
		if r := h.getRenderer(); r != nil {
			r.Rename(buf)
		}
	case InputEnter:
		h.mu.Lock()
		buf := h.renameInput
		h.renameInput = nil
		var tunnel *registry.Tunnel
		if h.selected != nil && *h.selected < len(h.tunnels) {
			tunnel = h.tunnels[*h.selected]
		}
		h.mu.Unlock()

		if tunnel != nil && buf != nil {
			tunnel.SetName(*buf)
			h.refreshRows()
		} else {
			h.logger.Warn().Msg("trying to rename invalid tunnel")
		}
		if r := h.getRenderer(); r != nil {
			r.Rename(nil)
		}
	case InputEsc:
		h.mu.Lock()
		h.renameInput = nil
		h.mu.Unlock()
		if r := h.getRenderer(); r != nil {
			r.Rename(nil)
		}
	}
}

func (h *Handler) selectNext() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tunnels) == 0 {
		return
	}
	var next int
	if h.selected == nil {
		next = 0
	} else if *h.selected < len(h.tunnels)-1 {
		next = *h.selected + 1
	} else {
		next = *h.selected
	}
	h.selected = &next
	h.sendSelect()
}

func (h *Handler) selectPrevious() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tunnels) == 0 {
		return
	}
	var prev int
	if h.selected == nil {
		prev = len(h.tunnels) - 1
	} else if *h.selected > 0 {
		prev = *h.selected - 1
	} else {
		prev = *h.selected
	}
	h.selected = &prev
	h.sendSelect()
}

// sendSelect must be called with h.mu held.
func (h *Handler) sendSelect() {
	renderer := h.renderer
	selected := h.selected
	if renderer != nil {
		var copied *int
		if selected != nil {
			v := *selected
			copied = &v
		}
		renderer.Select(copied)
	}
}

func (h *Handler) setAccessSelection(access registry.Access) {
	h.mu.Lock()
	selected := h.selected
	tunnels := h.tunnels
	h.mu.Unlock()

	if selected != nil {
		if *selected < len(tunnels) {
			tunnels[*selected].Inner.SetAccess(access)
		}
	} else {
		for _, t := range tunnels {
			t.Inner.SetAccess(access)
		}
	}
	h.refreshRows()
}

func (h *Handler) setAccessAll(access registry.Access) {
	h.mu.Lock()
	tunnels := h.tunnels
	h.mu.Unlock()

	for _, t := range tunnels {
		t.Inner.SetAccess(access)
	}
	h.refreshRows()
}

func (h *Handler) retrySelected() {
	h.mu.Lock()
	selected := h.selected
	var tunnel *registry.Tunnel
	if selected != nil && *selected < len(h.tunnels) {
		tunnel = h.tunnels[*selected]
	}
	h.mu.Unlock()

	if tunnel == nil {
		h.logger.Warn().Msg("trying to retry invalid tunnel")
		return
	}
	tunnel.Retry()
	h.refreshRows()
}

func (h *Handler) startRename() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.selected == nil {
		return
	}
	empty := ""
	h.renameInput = &empty
	h.sendRename()
}

// sendRename must be called with h.mu held.
func (h *Handler) sendRename() {
	if h.renderer == nil {
		return
	}
	var copied *string
	if h.renameInput != nil {
		v := *h.renameInput
		copied = &v
	}
	h.renderer.Rename(copied)
}

func (h *Handler) deleteSelected() {
	h.mu.Lock()
	selected := h.selected
	if selected == nil {
		h.mu.Unlock()
		return
	}
	if *selected >= len(h.tunnels) {
		h.mu.Unlock()
		h.logger.Warn().Msg("trying to delete tunnel out of bounds")
		return
	}

	tunnel := h.tunnels[*selected]
	h.tunnels = append(h.tunnels[:*selected], h.tunnels[*selected+1:]...)

	var newSelected *int
	if len(h.tunnels) > 0 {
		idx := *selected
		if idx > len(h.tunnels)-1 {
			idx = len(h.tunnels) - 1
		}
		newSelected = &idx
	}
	h.selected = newSelected
	renderer := h.renderer
	h.mu.Unlock()

	tunnel.Close()
	h.refreshRows()
	if renderer != nil {
		renderer.Select(newSelected)
	}
}

// handleExec parses an SSH exec-request command line as flags that set
// every one of the session's tunnels to a single access level at once,
// e.g. `ssh -R ... host -- --public`. An unparseable command line applies
// no change; usage text is shown through the TUI, so it only reaches the
// client when the session has requested a PTY.
func (h *Handler) handleExec(cmd string) {
	fs := pflag.NewFlagSet("burrow", pflag.ContinueOnError)
	var out bytes.Buffer
	fs.SetOutput(&out)

	public := fs.Bool("public", false, "make all tunnels public by default instead of private")
	protected := fs.Bool("protected", false, "make all tunnels protected by default instead of private")

	err := fs.Parse(strings.Fields(cmd))
	if err == nil && *public && *protected {
		err = errors.New("--public and --protected are mutually exclusive")
	}

	if err != nil {
		out.WriteString("\n" + err.Error() + "\n\n" + fs.FlagUsages())
		if r := h.getRenderer(); r != nil {
			r.Help(out.String())
		}
		return
	}

	switch {
	case *public:
		h.setAccessAll(registry.Public())
	case *protected:
		h.setAccessAll(registry.Protected())
	}
}

func (h *Handler) refreshRows() {
	h.mu.Lock()
	renderer := h.renderer
	tunnels := make([]*registry.Tunnel, len(h.tunnels))
	copy(tunnels, h.tunnels)
	h.mu.Unlock()

	if renderer == nil {
		return
	}
	rows := make([]tui.Row, len(tunnels))
	for i, t := range tunnels {
		rows[i] = tui.NewRow(t)
	}
	renderer.Rows(rows)
}

// teardown closes every tunnel opened by this session. Called once the
// session's channels and global requests have all closed.
func (h *Handler) teardown() {
	h.mu.Lock()
	tunnels := h.tunnels
	h.tunnels = nil
	renderer := h.renderer
	h.mu.Unlock()

	for _, t := range tunnels {
		t.Close()
	}
	if renderer != nil {
		renderer.Stop()
	}
}

package sshgateway

// Wire payloads for the SSH requests this gateway understands, decoded
// with ssh.Unmarshal. Field names and order follow RFC 4254.

// tcpipForwardPayload is the "tcpip-forward" global request payload: the
// address and port the client wants the server to forward for. This
// gateway has no real listener to bind, so address/port are interpreted
// directly as the internal address/port of the developer's local service.
type tcpipForwardPayload struct {
	Addr string
	Port uint32
}

// ptyRequestPayload is the "pty-req" channel request payload (§8).
type ptyRequestPayload struct {
	Term     string
	Columns  uint32
	Rows     uint32
	Width    uint32
	Height   uint32
	Modelist string
}

// windowChangePayload is the "window-change" channel request payload (§8).
type windowChangePayload struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

// execPayload is the "exec" channel request payload (§6.5).
type execPayload struct {
	Command string
}

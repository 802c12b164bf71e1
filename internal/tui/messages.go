package tui

import "time"

// resizeMsg reports a new PTY window size, sent on an SSH window-change
// request.
type resizeMsg struct {
	width, height int
}

// rowsMsg replaces the full table contents, sent whenever the tunnel list
// or any tunnel's state changes.
type rowsMsg struct {
	rows []Row
}

// selectMsg updates which row is highlighted. A nil index means no
// selection.
type selectMsg struct {
	index *int
}

// renameMsg shows or hides the rename modal. A nil value hides it.
type renameMsg struct {
	input *string
}

// helpMsg asks the renderer to print a message outside the alternate
// screen and end the session, used when an exec-request's flags fail to
// parse.
type helpMsg struct {
	text string
}

// closeMsg ends the session cleanly, sent on 'q'.
type closeMsg struct{}

// tickMsg drives the once-a-second redraw that keeps traffic counters
// current even without new input.
type tickMsg time.Time

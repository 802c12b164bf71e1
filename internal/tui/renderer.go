package tui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Renderer drives one developer's TUI over their SSH session's PTY. It
// owns no input of its own: the session handler reads and interprets
// keystrokes, then tells the Renderer what changed.
type Renderer struct {
	program *tea.Program
	reader  *blockingReader
	done    chan struct{}
}

// Start launches the TUI, writing to output (the SSH channel) and never
// reading real input — see blockingReader. Done() closes once the program
// exits, whether from Close, Help, or the output side going away.
func Start(output io.Writer) *Renderer {
	reader := newBlockingReader()

	program := tea.NewProgram(
		NewModel(),
		tea.WithInput(reader),
		tea.WithOutput(output),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
		tea.WithoutCatchPanics(),
	)

	r := &Renderer{program: program, reader: reader, done: make(chan struct{})}

	go func() {
		defer close(r.done)
		// Errors here are session-ending I/O failures (client disconnected
		// mid-render); nothing upstream can do more than let the session
		// teardown path run.
		_, _ = program.Run()
	}()

	return r
}

// Done is closed once the underlying program has stopped running.
func (r *Renderer) Done() <-chan struct{} { return r.done }

// Select highlights the given row index, or clears the selection if nil.
func (r *Renderer) Select(index *int) {
	r.program.Send(selectMsg{index: index})
}

// Rename shows or hides the rename modal with the given buffer contents.
func (r *Renderer) Rename(input *string) {
	r.program.Send(renameMsg{input: input})
}

// Rows replaces the table's contents.
func (r *Renderer) Rows(rows []Row) {
	r.program.Send(rowsMsg{rows: rows})
}

// Help prints message outside the TUI and ends the session, used when an
// exec-request's flags fail to parse.
func (r *Renderer) Help(message string) {
	r.program.Send(helpMsg{text: message})
}

// Close ends the session cleanly, sent on 'q'.
func (r *Renderer) Close() {
	r.program.Send(closeMsg{})
}

// Resize updates the viewport to a new PTY window size.
func (r *Renderer) Resize(width, height int) {
	r.program.Send(resizeMsg{width: width, height: height})
}

// Stop forcibly tears down the program, used when the SSH session itself
// is gone and the renderer cannot be told to close cooperatively.
func (r *Renderer) Stop() {
	r.reader.Close()
	r.program.Kill()
}

package graphics

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// defaultTerminalStep is the downscale used when the output is not a TTY
const defaultTerminalStep = 4

// TerminalBackend renders frames as ANSI half-block characters
type TerminalBackend struct {
	initialized bool
	config      Config
}

// TerminalWindow draws into a terminal. Each character cell shows two
// sampled pixels: the upper as foreground, the lower as background.
type TerminalWindow struct {
	title   string
	width   int
	height  int
	running bool
	out     *bufio.Writer
	fd      int
	step    int
}

// NewTerminalBackend creates a new terminal backend
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

// Initialize initializes the terminal backend
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("terminal backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates a window on standard output
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return newTerminalWindow(title, width, height, os.Stdout, int(os.Stdout.Fd())), nil
}

func newTerminalWindow(title string, width, height int, out io.Writer, fd int) *TerminalWindow {
	w := &TerminalWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		out:     bufio.NewWriter(out),
		fd:      fd,
		step:    defaultTerminalStep,
	}
	if term.IsTerminal(fd) {
		if cols, rows, err := term.GetSize(fd); err == nil {
			w.step = terminalStep(cols, rows)
		}
	}
	return w
}

// terminalStep returns the smallest pixel stride that fits the frame into
// cols x rows cells, keeping one row for the cursor.
func terminalStep(cols, rows int) int {
	rows--
	if cols <= 0 || rows <= 0 {
		return defaultTerminalStep
	}
	step := 1
	for FrameWidth/step > cols || (FrameHeight/step+1)/2 > rows {
		step++
	}
	return step
}

// Cleanup releases all terminal resources
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns false
func (b *TerminalBackend) IsHeadless() bool {
	return false
}

// GetName returns the backend name
func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

// SetTitle sets the terminal title
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Fprintf(w.out, "\033]0;%s\007", title)
	w.out.Flush()
}

func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

func (w *TerminalWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns nothing; the terminal backend is output only
func (w *TerminalWindow) PollEvents() []InputEvent {
	return nil
}

// RenderFrame redraws the frame from the top-left corner
func (w *TerminalWindow) RenderFrame(frame []uint32) error {
	if err := checkFrame(frame); err != nil {
		return err
	}

	w.out.WriteString("\033[H")
	for y := 0; y < FrameHeight; y += 2 * w.step {
		for x := 0; x < FrameWidth; x += w.step {
			top := frame[y*FrameWidth+x]
			bottom := top
			if y+w.step < FrameHeight {
				bottom = frame[(y+w.step)*FrameWidth+x]
			}
			fmt.Fprintf(w.out, "\033[38;2;%d;%d;%dm\033[48;2;%d;%d;%dm▀",
				uint8(top>>16), uint8(top>>8), uint8(top),
				uint8(bottom>>16), uint8(bottom>>8), uint8(bottom))
		}
		w.out.WriteString("\033[0m\n")
	}
	return w.out.Flush()
}

// Cleanup resets terminal colors
func (w *TerminalWindow) Cleanup() error {
	w.running = false
	w.out.WriteString("\033[0m")
	return w.out.Flush()
}

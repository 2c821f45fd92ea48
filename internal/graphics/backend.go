// Package graphics provides the host-side display, keyboard and audio
// backends the application presents the console through.
package graphics

import "fmt"

// Frame dimensions of the console picture
const (
	FrameWidth  = 256
	FrameHeight = 240
)

// Backend represents a presentation backend (Ebitengine, terminal, headless)
type Backend interface {
	// Initialize initializes the backend
	Initialize(config Config) error

	// CreateWindow creates a window for rendering
	CreateWindow(title string, width, height int) (Window, error)

	// Cleanup releases all resources
	Cleanup() error

	// IsHeadless returns true if the backend never shows a picture
	IsHeadless() bool

	// GetName returns the backend name for identification
	GetName() string
}

// Window represents a rendering target
type Window interface {
	SetTitle(title string)
	GetSize() (width, height int)
	ShouldClose() bool

	// PollEvents returns the input events gathered since the last call
	PollEvents() []InputEvent

	// RenderFrame presents a FrameWidth x FrameHeight 0x00RRGGBB frame
	RenderFrame(frame []uint32) error

	Cleanup() error
}

// Config contains configuration for backends
type Config struct {
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	Resizable    bool
	VSync        bool
	Filter       string // "nearest", "linear"

	// KeyMap holds key names per controller port in controller order
	KeyMap [2][8]string

	Headless bool
	Debug    bool
}

// InputEvent represents an input event from the window
type InputEvent struct {
	Type InputEventType

	// Controller events
	Port   int
	Button int // index in controller order: A, B, Select, Start, Up, Down, Left, Right

	// Key events
	Key       Key
	Modifiers ModifierKey

	Pressed bool
}

// InputEventType represents the type of input event
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key represents the hotkeys the application reacts to
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyPause
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// ModifierKey represents modifier keys
type ModifierKey int

const (
	ModifierNone  ModifierKey = 0
	ModifierShift ModifierKey = 1 << iota
	ModifierCtrl
	ModifierAlt
)

// BackendType represents different backend types
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend creates a backend of the specified type
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendEbitengine:
		return NewEbitengineBackend(), nil
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", backendType)
	}
}

// ButtonState folds button events into the held-button arrays of both
// controller ports.
type ButtonState struct {
	ports [2][8]bool
}

// Apply records ev and reports whether it changed a held button
func (s *ButtonState) Apply(ev InputEvent) bool {
	if ev.Type != InputEventTypeButton || ev.Port < 0 || ev.Port > 1 || ev.Button < 0 || ev.Button > 7 {
		return false
	}
	if s.ports[ev.Port][ev.Button] == ev.Pressed {
		return false
	}
	s.ports[ev.Port][ev.Button] = ev.Pressed
	return true
}

// Buttons returns the held buttons of port
func (s *ButtonState) Buttons(port int) [8]bool {
	if port < 0 || port > 1 {
		return [8]bool{}
	}
	return s.ports[port]
}

// Release lets go of every button
func (s *ButtonState) Release() {
	s.ports = [2][8]bool{}
}

// fillRGBA converts a 0x00RRGGBB frame into opaque RGBA bytes
func fillRGBA(dst []byte, frame []uint32) {
	for i, pixel := range frame {
		o := i * 4
		if o+3 >= len(dst) {
			return
		}
		dst[o] = uint8(pixel >> 16)
		dst[o+1] = uint8(pixel >> 8)
		dst[o+2] = uint8(pixel)
		dst[o+3] = 0xFF
	}
}

func checkFrame(frame []uint32) error {
	if len(frame) != FrameWidth*FrameHeight {
		return fmt.Errorf("frame has %d pixels, want %d", len(frame), FrameWidth*FrameHeight)
	}
	return nil
}

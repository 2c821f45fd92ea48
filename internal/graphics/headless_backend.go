package graphics

import (
	"fmt"
	"sync"
)

// HeadlessBackend implements the Backend interface for headless operation
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow keeps the last presented frame in memory. Events can be
// injected for scripted runs and tests.
type HeadlessWindow struct {
	mu         sync.Mutex
	title      string
	width      int
	height     int
	running    bool
	frameCount int
	lastFrame  []uint32
	events     []InputEvent
	frameHook  func(frame []uint32, n int) error
}

// NewHeadlessBackend creates a new headless backend
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

// Initialize initializes the headless backend
func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates an off-screen window
func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return &HeadlessWindow{
		title:     title,
		width:     width,
		height:    height,
		running:   true,
		lastFrame: make([]uint32, FrameWidth*FrameHeight),
	}, nil
}

// Cleanup releases all headless resources
func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true
func (b *HeadlessBackend) IsHeadless() bool {
	return true
}

// GetName returns the backend name
func (b *HeadlessBackend) GetName() string {
	return "Headless"
}

func (w *HeadlessWindow) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.title = title
}

// Title returns the current title
func (w *HeadlessWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

func (w *HeadlessWindow) GetSize() (width, height int) {
	return w.width, w.height
}

func (w *HeadlessWindow) ShouldClose() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.running
}

// InjectEvent queues an event for the next PollEvents
func (w *HeadlessWindow) InjectEvent(ev InputEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, ev)
}

func (w *HeadlessWindow) PollEvents() []InputEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := w.events
	w.events = nil
	return events
}

// SetFrameHook installs fn to be called with every presented frame and its
// 1-based index.
func (w *HeadlessWindow) SetFrameHook(fn func(frame []uint32, n int) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frameHook = fn
}

// RenderFrame copies the frame and runs the frame hook
func (w *HeadlessWindow) RenderFrame(frame []uint32) error {
	if err := checkFrame(frame); err != nil {
		return err
	}

	w.mu.Lock()
	copy(w.lastFrame, frame)
	w.frameCount++
	n, hook := w.frameCount, w.frameHook
	w.mu.Unlock()

	if hook != nil {
		return hook(frame, n)
	}
	return nil
}

// LastFrame returns a copy of the most recently presented frame
func (w *HeadlessWindow) LastFrame() []uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]uint32(nil), w.lastFrame...)
}

// GetFrameCount returns the number of presented frames
func (w *HeadlessWindow) GetFrameCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frameCount
}

func (w *HeadlessWindow) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	return nil
}

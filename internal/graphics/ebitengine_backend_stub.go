//go:build headless

package graphics

import (
	"fmt"
	"io"
)

// EbitengineBackend stub for headless builds
type EbitengineBackend struct{}

// EbitengineWindow stub for headless builds
type EbitengineWindow struct{}

// NewEbitengineBackend returns a backend that always fails to initialize
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

func (b *EbitengineBackend) Initialize(config Config) error {
	return fmt.Errorf("Ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	return nil, fmt.Errorf("Ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) Cleanup() error { return nil }
func (b *EbitengineBackend) IsHeadless() bool { return true }
func (b *EbitengineBackend) GetName() string { return "Ebitengine (stub)" }

func (w *EbitengineWindow) SetTitle(title string) {}
func (w *EbitengineWindow) GetSize() (width, height int) { return 0, 0 }
func (w *EbitengineWindow) ShouldClose() bool { return true }
func (w *EbitengineWindow) PollEvents() []InputEvent { return nil }
func (w *EbitengineWindow) RenderFrame(frame []uint32) error { return nil }
func (w *EbitengineWindow) Cleanup() error { return nil }
func (w *EbitengineWindow) SetUpdateFunc(fn func() error) {}
func (w *EbitengineWindow) Run() error { return fmt.Errorf("Ebitengine not available") }
func (w *EbitengineWindow) AttachAudio(io.Reader, int) error { return fmt.Errorf("Ebitengine not available") }

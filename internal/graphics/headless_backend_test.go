package graphics

import (
	"errors"
	"testing"
)

func newHeadlessWindow(t *testing.T) *HeadlessWindow {
	t.Helper()
	backend := NewHeadlessBackend()
	if err := backend.Initialize(Config{Headless: true}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	window, err := backend.CreateWindow("test", 256, 240)
	if err != nil {
		t.Fatalf("CreateWindow failed: %v", err)
	}
	return window.(*HeadlessWindow)
}

func TestHeadlessBackend_DoubleInitialize_ShouldFail(t *testing.T) {
	backend := NewHeadlessBackend()
	if err := backend.Initialize(Config{}); err != nil {
		t.Fatalf("First Initialize failed: %v", err)
	}
	if err := backend.Initialize(Config{}); err == nil {
		t.Error("Second Initialize should fail")
	}
	if !backend.IsHeadless() {
		t.Error("Headless backend should report headless")
	}
}

func TestHeadlessBackend_CreateWindow_Uninitialized(t *testing.T) {
	if _, err := NewHeadlessBackend().CreateWindow("x", 1, 1); err == nil {
		t.Error("Expected error creating window before Initialize")
	}
}

func TestHeadlessWindow_RenderFrame_ShouldKeepCopy(t *testing.T) {
	window := newHeadlessWindow(t)
	frame := make([]uint32, FrameWidth*FrameHeight)
	frame[0] = 0x00ABCDEF

	if err := window.RenderFrame(frame); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	frame[0] = 0

	if got := window.LastFrame()[0]; got != 0x00ABCDEF {
		t.Errorf("LastFrame[0] = 0x%06X, want 0xABCDEF", got)
	}
	if window.GetFrameCount() != 1 {
		t.Errorf("GetFrameCount = %d, want 1", window.GetFrameCount())
	}
}

func TestHeadlessWindow_FrameHook_ShouldReceiveIndexAndError(t *testing.T) {
	window := newHeadlessWindow(t)
	frame := make([]uint32, FrameWidth*FrameHeight)
	hookErr := errors.New("disk full")

	var seen []int
	window.SetFrameHook(func(f []uint32, n int) error {
		seen = append(seen, n)
		if n == 2 {
			return hookErr
		}
		return nil
	})

	if err := window.RenderFrame(frame); err != nil {
		t.Fatalf("Frame 1: %v", err)
	}
	if err := window.RenderFrame(frame); !errors.Is(err, hookErr) {
		t.Errorf("Frame 2 error = %v, want hook error", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("hook indexes = %v, want [1 2]", seen)
	}
}

func TestHeadlessWindow_InjectEvent_ShouldBePolledOnce(t *testing.T) {
	window := newHeadlessWindow(t)
	window.InjectEvent(InputEvent{Type: InputEventTypeQuit, Pressed: true})

	if events := window.PollEvents(); len(events) != 1 || events[0].Type != InputEventTypeQuit {
		t.Errorf("PollEvents = %+v", events)
	}
	if events := window.PollEvents(); len(events) != 0 {
		t.Errorf("Second PollEvents = %+v, want empty", events)
	}
}

func TestHeadlessWindow_Cleanup_ShouldClose(t *testing.T) {
	window := newHeadlessWindow(t)
	window.SetTitle("nescore - game.nes")
	if window.Title() != "nescore - game.nes" {
		t.Errorf("Title = %q", window.Title())
	}
	if window.ShouldClose() {
		t.Error("New window should not be closing")
	}
	window.Cleanup()
	if !window.ShouldClose() {
		t.Error("Window should close after Cleanup")
	}
}

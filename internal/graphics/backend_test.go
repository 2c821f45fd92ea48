package graphics

import "testing"

func TestCreateBackend_KnownTypes(t *testing.T) {
	tests := []struct {
		backendType BackendType
		name        string
	}{
		{BackendHeadless, "Headless"},
		{BackendTerminal, "Terminal"},
	}

	for _, tt := range tests {
		t.Run(string(tt.backendType), func(t *testing.T) {
			backend, err := CreateBackend(tt.backendType)
			if err != nil {
				t.Fatalf("CreateBackend failed: %v", err)
			}
			if backend.GetName() != tt.name {
				t.Errorf("Expected backend %q, got %q", tt.name, backend.GetName())
			}
		})
	}
}

func TestCreateBackend_UnknownType_ShouldFail(t *testing.T) {
	if _, err := CreateBackend("sdl2"); err == nil {
		t.Error("Expected error for unknown backend type")
	}
}

func TestButtonState_Apply_ShouldTrackBothPorts(t *testing.T) {
	var state ButtonState

	if !state.Apply(InputEvent{Type: InputEventTypeButton, Port: 0, Button: 3, Pressed: true}) {
		t.Error("Pressing Start should report a change")
	}
	if state.Apply(InputEvent{Type: InputEventTypeButton, Port: 0, Button: 3, Pressed: true}) {
		t.Error("Repeated press should not report a change")
	}
	state.Apply(InputEvent{Type: InputEventTypeButton, Port: 1, Button: 0, Pressed: true})

	if got := state.Buttons(0); !got[3] || got[0] {
		t.Errorf("Port 0 buttons = %v", got)
	}
	if got := state.Buttons(1); !got[0] {
		t.Errorf("Port 1 buttons = %v", got)
	}

	state.Release()
	if state.Buttons(0) != [8]bool{} || state.Buttons(1) != [8]bool{} {
		t.Error("Release should clear every button")
	}
}

func TestButtonState_Apply_ShouldIgnoreInvalidEvents(t *testing.T) {
	var state ButtonState
	events := []InputEvent{
		{Type: InputEventTypeKey, Key: KeyF1, Pressed: true},
		{Type: InputEventTypeButton, Port: 2, Button: 0, Pressed: true},
		{Type: InputEventTypeButton, Port: 0, Button: 8, Pressed: true},
		{Type: InputEventTypeButton, Port: -1, Button: 0, Pressed: true},
	}
	for _, ev := range events {
		if state.Apply(ev) {
			t.Errorf("Event %+v should be ignored", ev)
		}
	}
	if state.Buttons(5) != [8]bool{} {
		t.Error("Out-of-range port should report no buttons")
	}
}

func TestFillRGBA_ShouldUnpackChannels(t *testing.T) {
	dst := make([]byte, 8)
	fillRGBA(dst, []uint32{0x00112233, 0x00FF0080})

	want := []byte{0x11, 0x22, 0x33, 0xFF, 0xFF, 0x00, 0x80, 0xFF}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, dst[i], want[i])
		}
	}
}

func TestCheckFrame_WrongSize_ShouldFail(t *testing.T) {
	if err := checkFrame(make([]uint32, 100)); err == nil {
		t.Error("Expected error for short frame")
	}
	if err := checkFrame(make([]uint32, FrameWidth*FrameHeight)); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

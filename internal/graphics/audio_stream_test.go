package graphics

import (
	"encoding/binary"
	"testing"
)

func readFrames(t *testing.T, s *AudioStream, frames int) []int16 {
	t.Helper()
	buf := make([]byte, frames*4)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Read returned %d bytes, want %d", n, len(buf))
	}
	out := make([]int16, 0, frames*2)
	for i := 0; i < n; i += 2 {
		out = append(out, int16(binary.LittleEndian.Uint16(buf[i:])))
	}
	return out
}

func TestAudioStream_Read_ShouldDuplicateMonoToStereo(t *testing.T) {
	s := NewAudioStream(16, 1)
	s.PushSamples([]float32{0.5, 0.25})

	got := readFrames(t, s, 2)
	want := []int16{16383, 16383, 8191, 8191}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %d, want %d", i, got[i], want[i])
		}
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestAudioStream_Underrun_ShouldHoldLastLevel(t *testing.T) {
	s := NewAudioStream(16, 1)
	s.PushSamples([]float32{0.5})

	got := readFrames(t, s, 3)
	for i, v := range got {
		if v != 16383 {
			t.Errorf("value %d = %d, want held level 16383", i, v)
		}
	}
}

func TestAudioStream_Push_ShouldDropOldestBeyondLimit(t *testing.T) {
	s := NewAudioStream(2, 1)
	s.PushSamples([]float32{0.1, 0.2, 0.3})

	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}
	got := readFrames(t, s, 1)
	if got[0] != toPCM16(0.2) {
		t.Errorf("first sample = %d, want %d", got[0], toPCM16(0.2))
	}
}

func TestAudioStream_Volume_ShouldScaleOutput(t *testing.T) {
	s := NewAudioStream(4, 1)
	s.SetVolume(0.5)
	s.PushSamples([]float32{0.5})

	if got := readFrames(t, s, 1); got[0] != toPCM16(0.25) {
		t.Errorf("sample = %d, want %d", got[0], toPCM16(0.25))
	}
}

func TestToPCM16_ShouldClamp(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{-0.5, 0},
		{0, 0},
		{1, 32767},
		{2, 32767},
	}
	for _, tt := range tests {
		if got := toPCM16(tt.in); got != tt.want {
			t.Errorf("toPCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

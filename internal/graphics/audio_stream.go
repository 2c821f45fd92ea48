package graphics

import (
	"encoding/binary"
	"sync"
)

// AudioStream buffers mono console samples and serves them as signed 16-bit
// little-endian stereo, the format ebiten's audio player reads. When the
// buffer runs dry it plays silence rather than blocking the player.
type AudioStream struct {
	mu      sync.Mutex
	samples []float32
	limit   int
	volume  float32
	last    int16
}

// NewAudioStream creates a stream holding at most limit pending samples
func NewAudioStream(limit int, volume float32) *AudioStream {
	if limit <= 0 {
		limit = 8192
	}
	return &AudioStream{limit: limit, volume: volume}
}

// PushSamples queues samples, dropping the oldest beyond the limit
func (s *AudioStream) PushSamples(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	if over := len(s.samples) - s.limit; over > 0 {
		s.samples = append(s.samples[:0], s.samples[over:]...)
	}
}

// Pending returns the number of queued samples
func (s *AudioStream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// SetVolume sets the output gain in [0,1]
func (s *AudioStream) SetVolume(volume float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
}

// Read fills p with whole stereo frames. Underruns repeat the last level
// so the output does not click.
func (s *AudioStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 4
	n := frames
	if n > len(s.samples) {
		n = len(s.samples)
	}
	for i := 0; i < frames; i++ {
		v := s.last
		if i < n {
			v = toPCM16(s.samples[i] * s.volume)
			s.last = v
		}
		binary.LittleEndian.PutUint16(p[i*4:], uint16(v))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(v))
	}
	s.samples = append(s.samples[:0], s.samples[n:]...)
	return frames * 4, nil
}

func toPCM16(s float32) int16 {
	switch {
	case s <= 0:
		return 0
	case s >= 1:
		return 32767
	}
	return int16(s * 32767)
}

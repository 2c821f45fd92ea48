package app

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"nescore/internal/apu"
)

const (
	wavBitDepth = 16
	wavPCM      = 1
)

// WAVRecorder streams the console's mono sample output to a 16-bit PCM
// WAV file. It implements AudioSink.
type WAVRecorder struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *wav.Encoder
	buffer  *audio.IntBuffer
	written int
	err     error
}

// NewWAVRecorder creates path and prepares it for recording
func NewWAVRecorder(path string) (*WAVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	return &WAVRecorder{
		path:    path,
		file:    f,
		encoder: wav.NewEncoder(f, apu.SampleRate, wavBitDepth, 1, wavPCM),
		buffer: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: apu.SampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

// PushSamples appends samples to the recording. The first write error is
// kept and returned by Close.
func (r *WAVRecorder) PushSamples(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.encoder == nil {
		return
	}

	r.buffer.Data = r.buffer.Data[:0]
	for _, s := range samples {
		r.buffer.Data = append(r.buffer.Data, sampleToInt16(s))
	}
	if err := r.encoder.Write(r.buffer); err != nil {
		r.err = fmt.Errorf("failed to write recording: %w", err)
		return
	}
	r.written += len(samples)
}

// SamplesWritten returns the number of samples recorded so far
func (r *WAVRecorder) SamplesWritten() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close finalizes the WAV header and closes the file
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder == nil {
		return r.err
	}

	var err error
	if r.written == 0 && r.err == nil {
		// The encoder only emits its header on the first write
		r.buffer.Data = r.buffer.Data[:0]
		err = r.encoder.Write(r.buffer)
	}
	if cerr := r.encoder.Close(); err == nil {
		err = cerr
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.encoder = nil
	if r.err != nil {
		return r.err
	}
	if err != nil {
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	log.Printf("[APP] Recorded %d samples to %s", r.written, r.path)
	return nil
}

// sampleToInt16 maps a mixer sample in [0,1) onto the positive int16 range
func sampleToInt16(s float32) int {
	switch {
	case s <= 0:
		return 0
	case s >= 1:
		return 32767
	}
	return int(s * 32767)
}

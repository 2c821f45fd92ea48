package apu

// DefaultQueueSize is the sample queue capacity used by New
const DefaultQueueSize = 8192

// SampleQueue is a bounded ring buffer of mono samples. When full, pushing
// a new sample discards the oldest one.
type SampleQueue struct {
	buf     []float32
	head    int
	count   int
	dropped uint64
}

// NewSampleQueue creates a queue holding at most capacity samples
func NewSampleQueue(capacity int) *SampleQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &SampleQueue{buf: make([]float32, capacity)}
}

// Push appends a sample, dropping the oldest if the queue is full
func (q *SampleQueue) Push(sample float32) {
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
	}
	q.buf[(q.head+q.count)%len(q.buf)] = sample
	q.count++
}

// Drain removes and returns all queued samples in order
func (q *SampleQueue) Drain() []float32 {
	out := q.Peek()
	q.head = 0
	q.count = 0
	return out
}

// Peek returns a copy of the queued samples without consuming them
func (q *SampleQueue) Peek() []float32 {
	out := make([]float32, q.count)
	for i := range out {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

func (q *SampleQueue) Len() int { return q.count }
func (q *SampleQueue) Cap() int { return len(q.buf) }

// Dropped reports how many samples have been discarded since creation
func (q *SampleQueue) Dropped() uint64 { return q.dropped }

// Clear empties the queue and resets the drop counter
func (q *SampleQueue) Clear() {
	q.head = 0
	q.count = 0
	q.dropped = 0
}

// restore replaces the queue contents, keeping only the newest samples that fit
func (q *SampleQueue) restore(samples []float32, dropped uint64) {
	q.Clear()
	if extra := len(samples) - len(q.buf); extra > 0 {
		samples = samples[extra:]
		dropped += uint64(extra)
	}
	copy(q.buf, samples)
	q.count = len(samples)
	q.dropped = dropped
}

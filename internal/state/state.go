// Package state provides the flat key/value snapshot format used for save
// states, plus the encoder and decoder each emulated component uses to write
// and read its fields.
package state

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Snapshot is a complete capture of machine state keyed by stable,
// dot-separated field names such as "cpu.pc" or "ppu.oam".
type Snapshot map[string][]byte

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		b := make([]byte, len(v))
		copy(b, v)
		out[k] = b
	}
	return out
}

// Saver is implemented by every component that contributes fields to a
// snapshot.
type Saver interface {
	SaveState(e *Encoder)
	LoadState(d *Decoder) error
}

// MissingStateError is returned when a snapshot lacks a required key.
type MissingStateError struct {
	Key string
}

func (e *MissingStateError) Error() string {
	return fmt.Sprintf("snapshot missing required key %q", e.Key)
}

// LengthError is returned when a stored value does not have the size the
// field requires.
type LengthError struct {
	Key  string
	Want int
	Got  int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("snapshot key %q has %d bytes, want %d", e.Key, e.Got, e.Want)
}

// RangeError is returned when a stored value lies outside the range the
// field allows.
type RangeError struct {
	Key      string
	Value    int
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("snapshot key %q is %d, want %d..%d", e.Key, e.Value, e.Min, e.Max)
}

// Encoder writes typed fields into a Snapshot. Scalars are little-endian.
type Encoder struct {
	snap   Snapshot
	prefix string
}

// NewEncoder creates an encoder writing into a fresh snapshot.
func NewEncoder() *Encoder {
	return &Encoder{snap: make(Snapshot)}
}

// Scope returns an encoder that prefixes every key with name followed by a dot.
func (e *Encoder) Scope(name string) *Encoder {
	return &Encoder{snap: e.snap, prefix: e.prefix + name + "."}
}

// Snapshot returns the snapshot being written.
func (e *Encoder) Snapshot() Snapshot {
	return e.snap
}

func (e *Encoder) put(key string, b []byte) {
	e.snap[e.prefix+key] = b
}

func (e *Encoder) Uint8(key string, v uint8) {
	e.put(key, []byte{v})
}

func (e *Encoder) Bool(key string, v bool) {
	if v {
		e.put(key, []byte{1})
	} else {
		e.put(key, []byte{0})
	}
}

func (e *Encoder) Uint16(key string, v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	e.put(key, b)
}

func (e *Encoder) Uint32(key string, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	e.put(key, b)
}

func (e *Encoder) Uint64(key string, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	e.put(key, b)
}

// Int stores a signed value as 64 bits.
func (e *Encoder) Int(key string, v int) {
	e.Uint64(key, uint64(int64(v)))
}

func (e *Encoder) Float64(key string, v float64) {
	e.Uint64(key, math.Float64bits(v))
}

// Bytes stores a copy of b.
func (e *Encoder) Bytes(key string, b []byte) {
	c := make([]byte, len(b))
	copy(c, b)
	e.put(key, c)
}

func (e *Encoder) Uint32s(key string, v []uint32) {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], x)
	}
	e.put(key, b)
}

func (e *Encoder) Float32s(key string, v []float32) {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	e.put(key, b)
}

// Decoder reads typed fields from a Snapshot. The first failure is kept and
// returned by Err; later reads after a failure return zero values.
type Decoder struct {
	snap   Snapshot
	prefix string
	err    *error
}

// NewDecoder creates a decoder over snap.
func NewDecoder(snap Snapshot) *Decoder {
	var err error
	return &Decoder{snap: snap, err: &err}
}

// Scope returns a decoder that prefixes every key with name followed by a
// dot. Scoped decoders share the error of their parent.
func (d *Decoder) Scope(name string) *Decoder {
	return &Decoder{snap: d.snap, prefix: d.prefix + name + ".", err: d.err}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error {
	return *d.err
}

func (d *Decoder) get(key string, size int) []byte {
	if *d.err != nil {
		return nil
	}
	full := d.prefix + key
	b, ok := d.snap[full]
	if !ok {
		*d.err = &MissingStateError{Key: full}
		return nil
	}
	if size >= 0 && len(b) != size {
		*d.err = &LengthError{Key: full, Want: size, Got: len(b)}
		return nil
	}
	return b
}

func (d *Decoder) Uint8(key string) uint8 {
	b := d.get(key, 1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool(key string) bool {
	return d.Uint8(key) != 0
}

func (d *Decoder) Uint16(key string) uint16 {
	b := d.get(key, 2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *Decoder) Uint32(key string) uint32 {
	b := d.get(key, 4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) Uint64(key string) uint64 {
	b := d.get(key, 8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *Decoder) Int(key string) int {
	return int(int64(d.Uint64(key)))
}

// IntInRange reads an int and fails unless lo <= value <= hi.
func (d *Decoder) IntInRange(key string, lo, hi int) int {
	v := d.Int(key)
	if *d.err != nil {
		return 0
	}
	if v < lo || v > hi {
		*d.err = &RangeError{Key: d.prefix + key, Value: v, Min: lo, Max: hi}
		return 0
	}
	return v
}

func (d *Decoder) Float64(key string) float64 {
	return math.Float64frombits(d.Uint64(key))
}

// BytesInto copies the stored value into dst, which must match its length.
func (d *Decoder) BytesInto(key string, dst []byte) {
	b := d.get(key, len(dst))
	if b != nil {
		copy(dst, b)
	}
}

// Bytes returns a copy of a variable-length value.
func (d *Decoder) Bytes(key string) []byte {
	b := d.get(key, -1)
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Uint32sInto fills dst, which must match the stored element count.
func (d *Decoder) Uint32sInto(key string, dst []uint32) {
	b := d.get(key, 4*len(dst))
	if b == nil {
		return
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
}

// Float32s returns a variable-length float32 slice.
func (d *Decoder) Float32s(key string) []float32 {
	b := d.get(key, -1)
	if b == nil {
		return nil
	}
	if len(b)%4 != 0 {
		*d.err = &LengthError{Key: d.prefix + key, Want: len(b) &^ 3, Got: len(b)}
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

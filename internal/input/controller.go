// Package input implements controller handling for the NES.
package input

import (
	"log"

	"nescore/internal/state"
)

// Button represents NES controller buttons
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller represents a standard NES controller. Buttons are shifted out
// in the order A, B, Select, Start, Up, Down, Left, Right; every read after
// the eighth returns 1.
type Controller struct {
	buttons uint8

	// Latched copy of buttons shifted out one bit per read
	shiftRegister uint8
	strobe        bool
	bitPosition   uint8

	debugEnabled bool
}

// New creates a new Controller instance
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a single button
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all button states at once, indexed A, B, Select, Start,
// Up, Down, Left, Right
func (c *Controller) SetButtons(buttons [8]bool) {
	var mask uint8
	for i, pressed := range buttons {
		if pressed {
			mask |= 1 << i
		}
	}
	if c.debugEnabled && mask != c.buttons {
		log.Printf("[INPUT] buttons 0x%02X -> 0x%02X", c.buttons, mask)
	}
	c.buttons = mask
}

// IsPressed returns true if the button is currently pressed
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles writes to the strobe register ($4016)
func (c *Controller) Write(value uint8) {
	c.strobe = value&1 != 0
	if c.strobe {
		c.latch()
	}
}

func (c *Controller) latch() {
	c.shiftRegister = c.buttons
	c.bitPosition = 0
}

// Read returns the next button bit
func (c *Controller) Read() uint8 {
	if c.strobe {
		// While strobe is high the shifter keeps reloading, so A is returned
		c.latch()
		return c.shiftRegister & 1
	}
	if c.bitPosition >= 8 {
		return 1
	}
	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return bit
}

// Reset clears the latch; held buttons are kept since they reflect the host
func (c *Controller) Reset() {
	c.shiftRegister = 0
	c.strobe = false
	c.bitPosition = 0
}

// EnableDebug enables debug logging for this controller
func (c *Controller) EnableDebug(enable bool) {
	c.debugEnabled = enable
}

func (c *Controller) SaveState(e *state.Encoder) {
	e.Uint8("buttons", c.buttons)
	e.Uint8("shift", c.shiftRegister)
	e.Bool("strobe", c.strobe)
	e.Uint8("bit_position", c.bitPosition)
}

func (c *Controller) LoadState(d *state.Decoder) error {
	c.buttons = d.Uint8("buttons")
	c.shiftRegister = d.Uint8("shift")
	c.strobe = d.Bool("strobe")
	c.bitPosition = d.Uint8("bit_position")
	return d.Err()
}

// InputState represents the two controller ports
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets all input devices
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// EnableDebug enables debug logging for all controllers
func (is *InputState) EnableDebug(enable bool) {
	is.Controller1.EnableDebug(enable)
	is.Controller2.EnableDebug(enable)
}

// Port returns the controller on port 0 or 1, or nil
func (is *InputState) Port(port int) *Controller {
	switch port {
	case 0:
		return is.Controller1
	case 1:
		return is.Controller2
	default:
		return nil
	}
}

// SetButtons sets the buttons of the controller on the given port
func (is *InputState) SetButtons(port int, buttons [8]bool) {
	if c := is.Port(port); c != nil {
		c.SetButtons(buttons)
	}
}

// Read reads the next bit from a controller port ($4016/$4017). Only bit 0
// carries data.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read()
	default:
		return 0
	}
}

// Write writes the strobe; both controllers share the $4016 output line
func (is *InputState) Write(address uint16, value uint8) {
	if address != 0x4016 {
		return
	}
	is.Controller1.Write(value)
	is.Controller2.Write(value)
}

func (is *InputState) SaveState(e *state.Encoder) {
	is.Controller1.SaveState(e.Scope("pad1"))
	is.Controller2.SaveState(e.Scope("pad2"))
}

func (is *InputState) LoadState(d *state.Decoder) error {
	if err := is.Controller1.LoadState(d.Scope("pad1")); err != nil {
		return err
	}
	return is.Controller2.LoadState(d.Scope("pad2"))
}

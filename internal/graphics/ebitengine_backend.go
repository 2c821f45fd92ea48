//go:build !headless

package graphics

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// EbitengineBackend implements the Backend interface using Ebitengine
type EbitengineBackend struct {
	initialized bool
	config      Config
}

// EbitengineWindow implements the Window interface for Ebitengine. Ebitengine
// owns the main loop, so the application hands its per-tick work to
// SetUpdateFunc and then calls Run.
type EbitengineWindow struct {
	title   string
	width   int
	height  int
	running bool
	events  []InputEvent
	game    *EbitengineGame
	player  *audio.Player

	updateFunc func() error
}

// EbitengineGame implements ebiten.Game
type EbitengineGame struct {
	window     *EbitengineWindow
	frameImage *ebiten.Image
	pixels     []byte
	dirty      bool
	filter     ebiten.Filter

	bindings  []keyBinding
	drawCount int
	debug     bool
}

type keyBinding struct {
	key    ebiten.Key
	port   int
	button int
}

var hotkeys = map[ebiten.Key]Key{
	ebiten.KeyEscape: KeyEscape,
	ebiten.KeyP:      KeyPause,
	ebiten.KeyF1:     KeyF1,
	ebiten.KeyF2:     KeyF2,
	ebiten.KeyF3:     KeyF3,
	ebiten.KeyF4:     KeyF4,
	ebiten.KeyF5:     KeyF5,
	ebiten.KeyF6:     KeyF6,
	ebiten.KeyF7:     KeyF7,
	ebiten.KeyF8:     KeyF8,
	ebiten.KeyF9:     KeyF9,
	ebiten.KeyF10:    KeyF10,
	ebiten.KeyF11:    KeyF11,
	ebiten.KeyF12:    KeyF12,
}

// NewEbitengineBackend creates a new Ebitengine backend
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

// Initialize initializes the Ebitengine backend
func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("Ebitengine backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow configures the Ebitengine window
func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	if b.config.Headless {
		return nil, fmt.Errorf("cannot create window in headless mode")
	}

	bindings, err := parseKeyMap(b.config.KeyMap)
	if err != nil {
		return nil, err
	}

	game := &EbitengineGame{
		pixels:   make([]byte, FrameWidth*FrameHeight*4),
		filter:   ebiten.FilterNearest,
		bindings: bindings,
		debug:    b.config.Debug,
	}
	if b.config.Filter == "linear" {
		game.filter = ebiten.FilterLinear
	}

	window := &EbitengineWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		game:    game,
	}
	game.window = window

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	if b.config.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	ebiten.SetVsyncEnabled(b.config.VSync)
	ebiten.SetFullscreen(b.config.Fullscreen)

	return window, nil
}

// parseKeyMap resolves configured key names to Ebitengine keys
func parseKeyMap(keyMap [2][8]string) ([]keyBinding, error) {
	names := make(map[string]ebiten.Key)
	for k := ebiten.Key(0); k <= ebiten.KeyMax; k++ {
		names[k.String()] = k
	}

	var bindings []keyBinding
	for port, keys := range keyMap {
		for button, name := range keys {
			if name == "" {
				continue
			}
			key, ok := names[name]
			if !ok {
				return nil, fmt.Errorf("unknown key %q for port %d button %d", name, port+1, button)
			}
			bindings = append(bindings, keyBinding{key: key, port: port, button: button})
		}
	}
	return bindings, nil
}

// Cleanup releases all Ebitengine resources
func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns true if running in headless mode
func (b *EbitengineBackend) IsHeadless() bool {
	return b.config.Headless
}

// GetName returns the backend name
func (b *EbitengineBackend) GetName() string {
	return "Ebitengine"
}

// SetTitle sets the window title
func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

// GetSize returns window dimensions
func (w *EbitengineWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *EbitengineWindow) ShouldClose() bool {
	return !w.running
}

// PollEvents returns and clears the queued input events
func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.events
	w.events = nil
	return events
}

// RenderFrame uploads a frame to the window texture
func (w *EbitengineWindow) RenderFrame(frame []uint32) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	fillRGBA(w.game.pixels, frame)
	w.game.dirty = true
	return nil
}

// AttachAudio starts playing src, 16-bit stereo at sampleRate
func (w *EbitengineWindow) AttachAudio(src io.Reader, sampleRate int) error {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(sampleRate)
	}
	player, err := ctx.NewPlayer(src)
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}
	player.SetBufferSize(50 * time.Millisecond)
	player.Play()
	w.player = player
	return nil
}

// Cleanup releases window resources
func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	if w.player != nil {
		err := w.player.Close()
		w.player = nil
		return err
	}
	return nil
}

// SetUpdateFunc sets the function run once per Ebitengine tick
func (w *EbitengineWindow) SetUpdateFunc(fn func() error) {
	w.updateFunc = fn
}

// Run starts the Ebitengine game loop and blocks until the window closes
func (w *EbitengineWindow) Run() error {
	err := ebiten.RunGame(w.game)
	w.running = false
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Update implements ebiten.Game.Update
func (g *EbitengineGame) Update() error {
	g.pollInput()

	if g.window.updateFunc != nil {
		if err := g.window.updateFunc(); err != nil {
			return err
		}
	}
	if !g.window.running {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.Draw
func (g *EbitengineGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	if g.frameImage == nil {
		g.frameImage = ebiten.NewImage(FrameWidth, FrameHeight)
	}
	if g.dirty {
		g.frameImage.WritePixels(g.pixels)
		g.dirty = false
	}

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	scale := float64(sw) / FrameWidth
	if s := float64(sh) / FrameHeight; s < scale {
		scale = s
	}

	op := &ebiten.DrawImageOptions{Filter: g.filter}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate((float64(sw)-FrameWidth*scale)/2, (float64(sh)-FrameHeight*scale)/2)
	screen.DrawImage(g.frameImage, op)

	g.drawCount++
	if g.debug && g.drawCount%1800 == 0 {
		log.Printf("[Ebitengine] Drawing frame %d scaled %.2fx (TPS %.1f)", g.drawCount, scale, ebiten.ActualTPS())
	}
}

// Layout implements ebiten.Game.Layout
func (g *EbitengineGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.window.width, g.window.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

// pollInput turns keyboard edges into controller and hotkey events
func (g *EbitengineGame) pollInput() {
	for _, b := range g.bindings {
		switch {
		case inpututil.IsKeyJustPressed(b.key):
			g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeButton, Port: b.port, Button: b.button, Pressed: true})
		case inpututil.IsKeyJustReleased(b.key):
			g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeButton, Port: b.port, Button: b.button, Pressed: false})
		}
	}

	var mods ModifierKey
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		mods |= ModifierShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		mods |= ModifierCtrl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) {
		mods |= ModifierAlt
	}
	for ek, key := range hotkeys {
		if inpututil.IsKeyJustPressed(ek) {
			g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeKey, Key: key, Modifiers: mods, Pressed: true})
		}
	}

	if ebiten.IsWindowBeingClosed() {
		g.window.events = append(g.window.events, InputEvent{Type: InputEventTypeQuit, Pressed: true})
	}
}

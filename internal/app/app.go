// Package app implements the emulator application: configuration, the
// real-time run loop, save states and the window shell around a console.
package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"nescore/internal/apu"
	"nescore/internal/cartridge"
	"nescore/internal/console"
	"nescore/internal/debug"
	"nescore/internal/graphics"
	"nescore/internal/version"
)

// escConfirmWindow is how long a first Escape press waits for the second
const escConfirmWindow = 3 * time.Second

// pausedPoll is the idle sleep of the non-Ebitengine loop while paused
const pausedPoll = 16 * time.Millisecond

// Application represents the emulator application
type Application struct {
	config *Config

	// Graphics backend
	backend        graphics.Backend
	window         graphics.Window
	videoProcessor *graphics.VideoProcessor
	audioStream    *graphics.AudioStream

	// Emulation
	console  *console.Console
	emulator *Emulator
	states   *StateManager
	recorder *WAVRecorder
	romPath  string

	running  atomic.Bool
	headless bool
	buttons  graphics.ButtonState

	frameCount uint64
	frameLimit uint64
	frameHook  func(frame []uint32, n uint64) error
	startTime  time.Time

	lastESCTime time.Time
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }

// NewApplication creates an application. A config that fails to load is
// reported and replaced by defaults. headless forces the headless backend.
func NewApplication(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:    NewConfig(),
		headless:  headless,
		startTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			log.Printf("[APP] Could not load config from %s, using defaults: %v", configPath, err)
			app.config = NewConfig()
		}
	}
	if err := app.config.EnsureDirectories(); err != nil {
		log.Printf("[APP] %v", err)
	}

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return nil, &ApplicationError{Component: "graphics", Operation: "backend setup", Err: err}
	}

	states, err := NewStateManager(app.config.Paths.SaveStates, app.config.Emulation.SaveStateSlots)
	if err != nil {
		return nil, &ApplicationError{Component: "states", Operation: "state manager setup", Err: err}
	}
	app.states = states
	return app, nil
}

// initializeGraphicsBackend initializes the backend named by the
// configuration, falling back to headless when Ebitengine cannot start.
func (app *Application) initializeGraphicsBackend(headless bool) error {
	backendType := graphics.BackendType(app.config.Video.Backend)
	if headless {
		backendType = graphics.BackendHeadless
	}

	backend, err := graphics.CreateBackend(backendType)
	if err != nil {
		return err
	}

	width, height := app.config.WindowResolution()
	graphicsConfig := graphics.Config{
		WindowTitle:  version.Name,
		WindowWidth:  width,
		WindowHeight: height,
		Fullscreen:   app.config.Window.Fullscreen,
		Resizable:    app.config.Window.Resizable,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		KeyMap: [2][8]string{
			app.config.Input.Player1Keys.Buttons(),
			app.config.Input.Player2Keys.Buttons(),
		},
		Headless: backendType == graphics.BackendHeadless,
		Debug:    app.config.Debug.EnableLogging,
	}

	if err := backend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendEbitengine {
			return fmt.Errorf("failed to initialize %s backend: %w", backend.GetName(), err)
		}
		log.Printf("[APP] Ebitengine backend failed (%v), falling back to headless mode", err)
		backend = graphics.NewHeadlessBackend()
		graphicsConfig.Headless = true
		if err := backend.Initialize(graphicsConfig); err != nil {
			return fmt.Errorf("failed to initialize fallback headless backend: %w", err)
		}
		app.headless = true
	}

	window, err := backend.CreateWindow(graphicsConfig.WindowTitle, width, height)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	app.backend = backend
	app.window = window
	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness,
		app.config.Video.Contrast,
		app.config.Video.Saturation,
	)
	log.Printf("[APP] Using %s backend", backend.GetName())
	return nil
}

// LoadROM loads an iNES image and builds a fresh console around it
func (app *Application) LoadROM(romPath string) error {
	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}
	app.attach(console.New(cart), romPath)
	if cart.HasBattery() {
		if err := app.loadBatteryRAM(); err != nil {
			log.Printf("[APP] %v", err)
		}
	}
	log.Printf("[APP] Loaded %s (mapper %d)", filepath.Base(romPath), cart.MapperID())
	return nil
}

// attach makes c the running console
func (app *Application) attach(c *console.Console, romPath string) {
	app.console = c
	app.romPath = romPath
	app.emulator = NewEmulator(c, app.config)
	app.frameCount = 0
	app.buttons.Release()

	if app.recorder != nil {
		app.emulator.AddAudioSink(app.recorder)
	}
	if app.config.Audio.Enabled {
		app.attachAudio()
	}

	app.window.SetTitle(fmt.Sprintf("%s - %s", version.Name, filepath.Base(romPath)))
	c.Run()
}

// attachAudio routes emulated audio to the window when it can play it
func (app *Application) attachAudio() {
	window, ok := app.window.(*graphics.EbitengineWindow)
	if !ok {
		return
	}
	if app.audioStream == nil {
		stream := graphics.NewAudioStream(app.config.Emulation.AudioQueueSize, app.config.Audio.Volume)
		if err := window.AttachAudio(stream, apu.SampleRate); err != nil {
			log.Printf("[APP] Audio disabled: %v", err)
			return
		}
		app.audioStream = stream
	}
	app.emulator.AddAudioSink(app.audioStream)
}

// batteryPath returns where battery-backed PRG RAM is persisted
func (app *Application) batteryPath() string {
	base := strings.TrimSuffix(filepath.Base(app.romPath), filepath.Ext(app.romPath))
	return filepath.Join(app.config.Paths.SaveData, base+".sav")
}

func (app *Application) loadBatteryRAM() error {
	data, err := os.ReadFile(app.batteryPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read battery RAM: %w", err)
	}
	if err := app.console.Cartridge().LoadRAM(data); err != nil {
		return fmt.Errorf("failed to load battery RAM: %w", err)
	}
	log.Printf("[APP] Loaded battery RAM from %s", app.batteryPath())
	return nil
}

func (app *Application) saveBatteryRAM() error {
	if app.console == nil || !app.console.Cartridge().HasBattery() {
		return nil
	}
	if err := os.MkdirAll(app.config.Paths.SaveData, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %w", err)
	}
	if err := os.WriteFile(app.batteryPath(), app.console.Cartridge().SaveRAM(), 0644); err != nil {
		return fmt.Errorf("failed to write battery RAM: %w", err)
	}
	return nil
}

// StartRecording writes all further audio to a WAV file at path
func (app *Application) StartRecording(path string) error {
	if app.recorder != nil {
		return errors.New("already recording")
	}
	recorder, err := NewWAVRecorder(path)
	if err != nil {
		return &ApplicationError{Component: "audio", Operation: "start recording", Err: err}
	}
	app.recorder = recorder
	if app.emulator != nil {
		app.emulator.AddAudioSink(recorder)
	}
	return nil
}

// SetFrameHook installs fn to be called with every emulated frame and its
// 1-based number.
func (app *Application) SetFrameHook(fn func(frame []uint32, n uint64) error) {
	app.frameHook = fn
}

// SetFrameLimit stops the application after n frames; 0 runs until stopped
func (app *Application) SetFrameLimit(n uint64) {
	app.frameLimit = n
}

// Run starts the main application loop
func (app *Application) Run() error {
	if app.console == nil {
		return errors.New("no ROM loaded")
	}

	app.running.Store(true)
	app.startTime = time.Now()
	log.Printf("[APP] Starting emulation with %s backend", app.backend.GetName())

	if window, ok := app.window.(*graphics.EbitengineWindow); ok {
		window.SetUpdateFunc(func() error {
			if err := app.tick(); err != nil {
				return err
			}
			if !app.running.Load() {
				return window.Cleanup()
			}
			return nil
		})
		if err := window.Run(); err != nil {
			return &ApplicationError{Component: "graphics", Operation: "run window", Err: err}
		}
		return nil
	}

	for app.running.Load() {
		if err := app.tick(); err != nil {
			return err
		}
		if app.console.RunState() == console.Running {
			app.emulator.throttle()
		} else {
			app.emulator.clock.Sleep(pausedPoll)
		}
	}
	log.Printf("[APP] Main loop ended after %d frames", app.frameCount)
	return nil
}

// tick handles input, emulates a frame when running and presents it
func (app *Application) tick() error {
	app.processInput()
	if app.window.ShouldClose() {
		app.Stop()
	}
	if !app.running.Load() || app.console.RunState() != console.Running {
		return nil
	}

	if err := app.emulator.RunFrame(); err != nil {
		app.Stop()
		return &ApplicationError{Component: "emulator", Operation: "run frame", Err: err}
	}
	app.frameCount++
	if err := app.render(); err != nil {
		return err
	}

	if app.frameLimit > 0 && app.frameCount >= app.frameLimit {
		app.Stop()
	}
	return nil
}

// render presents the console frame and feeds the frame hook
func (app *Application) render() error {
	frame := app.console.FrameBuffer()
	if err := app.window.RenderFrame(app.videoProcessor.ProcessFrame(frame)); err != nil {
		return &ApplicationError{Component: "graphics", Operation: "render", Err: err}
	}
	if app.frameHook != nil {
		if err := app.frameHook(frame, app.frameCount); err != nil {
			return &ApplicationError{Component: "debug", Operation: "frame hook", Err: err}
		}
	}
	return nil
}

// processInput drains window events into the controllers and hotkeys
func (app *Application) processInput() {
	changed := false
	for _, event := range app.window.PollEvents() {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
		case graphics.InputEventTypeButton:
			if app.buttons.Apply(event) {
				changed = true
			}
		case graphics.InputEventTypeKey:
			if event.Pressed {
				app.handleHotkey(event)
			}
		}
	}
	if changed && app.console != nil {
		app.console.SetButtons(0, app.buttons.Buttons(0))
		app.console.SetButtons(1, app.buttons.Buttons(1))
	}
}

// handleHotkey handles Escape (double-tap quit), P (pause), F1-F10 (save,
// with Shift load), F11 (reset) and F12 (screenshot).
func (app *Application) handleHotkey(event graphics.InputEvent) {
	if event.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < escConfirmWindow {
			log.Printf("[APP] Escape confirmed, shutting down")
			app.Stop()
			return
		}
		log.Printf("[APP] Press Escape again within %v to quit", escConfirmWindow)
		app.lastESCTime = now
		return
	}
	app.lastESCTime = time.Time{}

	switch {
	case event.Key == graphics.KeyPause:
		app.TogglePause()
	case event.Key >= graphics.KeyF1 && event.Key <= graphics.KeyF10:
		slot := int(event.Key - graphics.KeyF1)
		if event.Modifiers&graphics.ModifierShift != 0 {
			if err := app.LoadState(slot); err != nil {
				log.Printf("[STATE] Failed to load slot %d: %v", slot, err)
			}
		} else if err := app.SaveState(slot); err != nil {
			log.Printf("[STATE] Failed to save slot %d: %v", slot, err)
		}
	case event.Key == graphics.KeyF11:
		app.Reset()
	case event.Key == graphics.KeyF12:
		if path, err := app.Screenshot(); err != nil {
			log.Printf("[APP] Screenshot failed: %v", err)
		} else {
			log.Printf("[APP] Screenshot saved to %s", path)
		}
	}
}

// Screenshot writes the current frame as a PNG into the screenshot directory
func (app *Application) Screenshot() (string, error) {
	if app.console == nil {
		return "", errors.New("no ROM loaded")
	}
	dumper := debug.NewFrameDumper(app.config.Paths.Screenshots, debug.FormatPNG)
	dumper.SetScale(app.config.Window.Scale)
	return dumper.Dump(app.videoProcessor.ProcessFrame(app.console.FrameBuffer()), app.console.Frame())
}

// Stop ends the main loop; safe to call from another goroutine
func (app *Application) Stop() {
	app.running.Store(false)
}

// Pause pauses emulation
func (app *Application) Pause() {
	if app.console != nil {
		app.console.Pause()
		log.Printf("[APP] Paused")
	}
}

// Resume resumes emulation
func (app *Application) Resume() {
	if app.console != nil {
		app.console.Run()
		app.emulator.resetPacing()
		log.Printf("[APP] Resumed")
	}
}

// TogglePause toggles pause state
func (app *Application) TogglePause() {
	if app.IsPaused() {
		app.Resume()
	} else {
		app.Pause()
	}
}

// SaveState saves the console into slot
func (app *Application) SaveState(slot int) error {
	if app.console == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.Save(app.console, slot, app.romPath)
}

// LoadState restores the console from slot
func (app *Application) LoadState(slot int) error {
	if app.console == nil {
		return errors.New("no ROM loaded")
	}
	if err := app.states.Load(app.console, slot, app.romPath); err != nil {
		return err
	}
	app.emulator.resetPacing()
	return nil
}

// Reset resets the console and keeps it running if it was
func (app *Application) Reset() {
	if app.console == nil {
		return
	}
	wasRunning := app.console.RunState() == console.Running
	app.emulator.Reset()
	if wasRunning {
		app.console.Run()
	}
}

// IsRunning returns whether the main loop is active
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// IsPaused returns whether emulation is paused
func (app *Application) IsPaused() bool {
	return app.console == nil || app.console.RunState() == console.Paused
}

// IsHeadless reports whether frames go to an off-screen window
func (app *Application) IsHeadless() bool {
	return app.headless
}

// GetFrameCount returns the number of frames run since the ROM was loaded
func (app *Application) GetFrameCount() uint64 {
	return app.frameCount
}

// GetUptime returns the time since Run started
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// GetROMPath returns the currently loaded ROM path
func (app *Application) GetROMPath() string {
	return app.romPath
}

// GetConfig returns the application configuration
func (app *Application) GetConfig() *Config {
	return app.config
}

// Console returns the loaded console, or nil
func (app *Application) Console() *console.Console {
	return app.console
}

// Window returns the presentation window
func (app *Application) Window() graphics.Window {
	return app.window
}

// States returns the save-state manager
func (app *Application) States() *StateManager {
	return app.states
}

// Cleanup releases all resources and shuts down the application
func (app *Application) Cleanup() error {
	var errs []error

	if err := app.saveBatteryRAM(); err != nil {
		errs = append(errs, err)
	}

	if app.recorder != nil {
		if err := app.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("recorder: %w", err))
		}
		app.recorder = nil
	}
	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("window: %w", err))
		}
	}
	if app.backend != nil {
		if err := app.backend.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("backend: %w", err))
		}
	}
	if app.console != nil && app.config.Debug.EnableLogging {
		log.Printf("[APP] Cleanup after %d frames, %d cycles, %d dropped samples",
			app.frameCount, app.console.Cycles(), app.console.DroppedAudioSamples())
	}
	return errors.Join(errs...)
}

// Package main implements the nescore NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nescore/internal/app"
	"nescore/internal/debug"
	"nescore/internal/version"
)

// options holds the parsed command line
type options struct {
	romFile      string
	configFile   string
	debugMode    bool
	trace        bool
	nogui        bool
	frames       uint64
	speed        float64
	dumpFormat   string
	dumpInterval int
	dumpDir      string
	record       string
	statsview    bool
	stateGraph   string
}

func main() {
	var opts options
	flag.StringVar(&opts.romFile, "rom", "", "Path to NES ROM file")
	flag.StringVar(&opts.configFile, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.debugMode, "debug", false, "Enable debug logging")
	flag.BoolVar(&opts.trace, "trace", false, "Log every executed CPU instruction")
	flag.BoolVar(&opts.nogui, "nogui", false, "Run without GUI (headless mode)")
	flag.Uint64Var(&opts.frames, "frames", 0, "Stop after this many frames (0 runs until quit)")
	flag.Float64Var(&opts.speed, "speed", -1, "Emulation speed multiplier (0 is unthrottled)")
	flag.StringVar(&opts.dumpFormat, "dump", "", "Dump frames as png, ppm or txt")
	flag.IntVar(&opts.dumpInterval, "dump-interval", 1, "Dump every Nth frame")
	flag.StringVar(&opts.dumpDir, "dump-dir", "./dumps", "Directory for frame dump sessions")
	flag.StringVar(&opts.record, "record", "", "Record audio to this WAV file")
	flag.BoolVar(&opts.statsview, "statsview", false, "Serve Go runtime charts while running")
	flag.StringVar(&opts.stateGraph, "stategraph", "", "Write a Graphviz graph of the final machine state to this file")
	help := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}
	if *showVersion {
		version.PrintBuildInfo(os.Stdout)
		os.Exit(0)
	}
	if opts.romFile == "" {
		printUsage()
		log.Fatal("A ROM file is required (-rom)")
	}

	// run has already cleaned up when it returns
	if err := run(opts); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// run executes one emulation session. The application is always cleaned
// up before it returns, including on error.
func run(opts options) error {
	configPath := opts.configFile
	if configPath == "" {
		configPath = app.DefaultConfigPath()
	}

	application, err := app.NewApplication(configPath, opts.nogui)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if cerr := application.Cleanup(); cerr != nil {
			log.Printf("Application cleanup error: %v", cerr)
		}
	}()

	config := application.GetConfig()
	if opts.debugMode {
		config.Debug.EnableLogging = true
		config.Debug.InputLogging = true
	}
	if opts.trace {
		config.Debug.CPUTracing = true
	}
	switch {
	case opts.speed >= 0:
		config.Emulation.Speed = opts.speed
	case application.IsHeadless() && opts.frames > 0:
		config.Emulation.Speed = 0
	}

	if err := application.LoadROM(opts.romFile); err != nil {
		return fmt.Errorf("failed to load ROM: %w", err)
	}
	fmt.Printf("Loaded %s\n", opts.romFile)

	application.SetFrameLimit(opts.frames)
	stopSignals := setupGracefulShutdown(application)
	defer stopSignals()

	if opts.record != "" {
		if err := application.StartRecording(opts.record); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		fmt.Printf("Recording audio to %s\n", opts.record)
	}

	if opts.statsview {
		server := debug.StartStatsServer(config.Debug.StatsAddr)
		defer server.Stop()
		fmt.Printf("Runtime stats at %s\n", server.URL())
	}

	var session *debug.Session
	if opts.dumpFormat != "" {
		session, err = startDumpSession(opts.dumpDir, opts.dumpFormat, opts.dumpInterval, config.Window.Scale)
		if err != nil {
			return fmt.Errorf("failed to start frame dump: %w", err)
		}
		application.SetFrameHook(session.ProcessFrame)
		fmt.Printf("Dumping frames to %s\n", session.OutputDir())
	}

	runErr := application.Run()

	if session != nil {
		if err := session.Stop(); err != nil {
			log.Printf("Failed to finish frame dump: %v", err)
		}
	}
	if opts.stateGraph != "" {
		if err := writeStateGraph(application, opts.stateGraph); err != nil {
			log.Printf("Failed to write state graph: %v", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("emulation failed: %w", runErr)
	}

	fmt.Printf("Ran %d frames in %v\n", application.GetFrameCount(), application.GetUptime())
	return nil
}

// startDumpSession opens a dump session writing every interval-th frame
func startDumpSession(dir, format string, interval, scale int) (*debug.Session, error) {
	f, err := debug.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	session := debug.NewSession(dir, f, scale)
	session.Dumper().SetDumpInterval(interval)
	if err := session.Start(); err != nil {
		return nil, err
	}
	return session, nil
}

// writeStateGraph renders the console snapshot as a Graphviz file
func writeStateGraph(application *app.Application, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	debug.WriteStateGraph(file, application.Console().Snapshot())
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Printf("State graph written to %s\n", path)
	return nil
}

// setupGracefulShutdown stops the main loop on SIGINT or SIGTERM so
// recordings and battery saves are flushed. The returned func releases
// the handler.
func setupGracefulShutdown(application *app.Application) func() {
	c := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-c:
			fmt.Println("\nInterrupt received, shutting down...")
			application.Stop()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}

func printUsage() {
	fmt.Println("nescore - NES emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nescore -rom <file> [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  nescore -rom game.nes")
	fmt.Println("  nescore -rom game.nes -record game.wav")
	fmt.Println("  nescore -nogui -rom test.nes -frames 120 -dump png -dump-interval 30")
	fmt.Println("  nescore -nogui -rom test.nes -frames 1 -stategraph state.dot")
	fmt.Println()
	fmt.Println("CONTROLS (Default):")
	fmt.Println("  Player 1: WASD D-Pad, J A, K B, Enter Start, Space Select")
	fmt.Println("  Player 2: Arrows D-Pad, N A, M B, Right Shift Start, Right Ctrl Select")
	fmt.Println()
	fmt.Println("  Escape (2x)       - Quit (double-tap within 3 seconds)")
	fmt.Println("  P                 - Pause / resume")
	fmt.Println("  F1-F10            - Save states")
	fmt.Println("  Shift+F1-F10      - Load states")
	fmt.Println("  F11               - Reset")
	fmt.Println("  F12               - Screenshot")
	fmt.Println()
	fmt.Printf("CONFIGURATION:\n  Config file: %s\n", app.DefaultConfigPath())
}

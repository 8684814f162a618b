package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/crusher/api"
	"github.com/lixenwraith/crusher/audio"
	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/config"
	"github.com/lixenwraith/crusher/game"
	"github.com/lixenwraith/crusher/haptic"
	"github.com/lixenwraith/crusher/particle"
	"github.com/lixenwraith/crusher/status"
	"github.com/lixenwraith/crusher/tui"
)

var (
	configFlag  = flag.String("config", "", "Path to a TOML config file")
	debugFlag   = flag.Bool("debug", false, "Write a debug log to logs/crusher.log")
	backendFlag = flag.String("backend", "", "Backend base URL, overrides config")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *backendFlag != "" {
		cfg.Backend.URL = *backendFlag
	}
	if *debugFlag {
		cfg.Log.Debug = true
	}
	if cfg.Log.Dir != "" {
		logDir = cfg.Log.Dir
	}
	if cfg.Log.MaxSizeMB > 0 {
		maxLogSize = int64(cfg.Log.MaxSizeMB) * 1024 * 1024
	}

	if logFile := setupLogging(cfg.Log.Debug); logFile != nil {
		defer logFile.Close()
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "crusher: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	// Restore the terminal before printing a crash
	defer func() {
		if r := recover(); r != nil {
			screen.Fini()
			fmt.Fprintf(os.Stderr, "\n\x1b[31mCRUSHER CRASHED: %v\x1b[0m\n", r)
			fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	reg := status.NewRegistry()
	clk := clock.Real()
	seed := time.Now().UnixNano()
	newRand := func(offset int64) *rand.Rand { return rand.New(rand.NewSource(seed + offset)) }

	sim := particle.NewSimulation(cfg.ParticleSim(), newRand(1), reg)
	stepper := sim.Run(clk, cfg.StepInterval())
	defer stepper.Stop()

	var out audio.Output
	if o, err := audio.NewSpeakerOutput(cfg.AudioEngine().Rate, cfg.AudioBuffer()); err != nil {
		log.Printf("[main] audio output unavailable, continuing without sound: %v", err)
	} else {
		out = o
	}
	snd := audio.NewEngine(cfg.AudioEngine(), out, audio.DirLoader{Dir: cfg.Audio.SampleDir}, clk, newRand(2), reg)
	defer snd.Close()
	log.Printf("[main] preloaded %d samples from %s", snd.Preload(), cfg.Audio.SampleDir)
	if cfg.Audio.Ambient && cfg.Audio.Enabled {
		snd.StartAmbient()
	}

	var vib haptic.Vibrator = haptic.NullVibrator{}
	if cfg.Haptic.Bell {
		bell := haptic.NewBellVibrator(screen, clk)
		defer bell.Cancel()
		vib = bell
	}
	hap := haptic.NewEngine(vib, clk, newRand(3), reg)
	// Apply strength silently, then the configured enabled state
	hap.SetEnabled(false)
	hap.SetStrength(cfg.Haptic.Strength)
	hap.SetEnabled(cfg.Haptic.Enabled)
	if cfg.Haptic.Ambient {
		ambient := hap.StartAmbient()
		defer ambient.Stop()
	}

	machine := game.NewMachine(game.Deps{
		Backend:   api.New(cfg.Backend.URL, cfg.RequestTimeout()),
		Particles: sim,
		Audio:     snd,
		Haptics:   hap,
		Clock:     clk,
		Rand:      newRand(4),
		Metrics:   reg,
	}, cfg.GameOptions())
	defer func() {
		if err := machine.Close(); err != nil {
			log.Printf("[main] close session: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	if err := machine.LoadCatalog(loadCtx); err != nil {
		log.Printf("[main] catalog unavailable at %s: %v", cfg.Backend.URL, err)
	}
	cancel()

	app := tui.NewApp(tui.Deps{
		Screen:  screen,
		Machine: machine,
		Sim:     sim,
		Audio:   snd,
		Haptic:  hap,
		Metrics: reg,
		Clock:   clk,
	}, tui.Options{
		CellWidth:      cfg.Arena.CellWidth,
		CellHeight:     cfg.Arena.CellHeight,
		RequestTimeout: cfg.RequestTimeout(),
	})

	err = app.Run(ctx)
	log.Printf("[main] exit metrics: %s", reg.Line())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

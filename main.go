package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/LivingInDrm/voice-assistant/audio"
	"github.com/LivingInDrm/voice-assistant/beep"
	"github.com/LivingInDrm/voice-assistant/clipboard"
	"github.com/LivingInDrm/voice-assistant/config"
	"github.com/LivingInDrm/voice-assistant/encoder"
	"github.com/LivingInDrm/voice-assistant/hotkey"
	"github.com/LivingInDrm/voice-assistant/log"
	"github.com/LivingInDrm/voice-assistant/model"
	"github.com/LivingInDrm/voice-assistant/pipeline"
	"github.com/LivingInDrm/voice-assistant/transcriber"
)

var version = "dev"

func run() {
	configFlag := flag.String("config", "", "config file path (default: OS config dir)")
	modelFlag := flag.String("model", "", "speech model (small or large), overrides config")
	langFlag := flag.String("lang", "", "source language hint (e.g. en, es), overrides config")
	deviceFlag := flag.String("device", "", "use named microphone device")
	setupFlag := flag.Bool("setup", false, "select microphone device interactively")
	nobeepFlag := flag.Bool("nobeep", false, "disable audio cues")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voice-assistant %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *nobeepFlag {
		beep.Disable()
	}

	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath, _ = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if *langFlag != "" {
		cfg.Language = *langFlag
	}

	selected, ok := model.ByID(cfg.Model)
	if !ok {
		fmt.Printf("Error: unknown model %q (use small or large)\n", cfg.Model)
		os.Exit(1)
	}

	modelDir := cfg.ModelDir
	if modelDir == "" {
		modelDir, err = model.DefaultDir()
		if err != nil {
			fmt.Printf("Error resolving model cache: %v\n", err)
			os.Exit(1)
		}
	}
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		fmt.Printf("Error creating model cache: %v\n", err)
		os.Exit(1)
	}
	mgr := model.NewManager(modelDir)

	engine, err := transcriber.NewWhisperCPP(mgr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}
	if selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name) {
		log.Warn("bluetooth microphone selected, expect degraded capture quality")
	}

	capture, err := actx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()

	hooks := pipeline.Hooks{
		Copy:      clipboard.Copy,
		BeepStart: beep.Start,
		BeepStop:  beep.Stop,
		BeepError: beep.Error,
	}
	if cfg.DumpDir != "" {
		dumpDir := cfg.DumpDir
		hooks.Dump = func(sess audio.Session) {
			path, err := encoder.DumpSession(dumpDir, sess)
			if err != nil {
				log.Warnf("recording dump: %v", err)
				return
			}
			log.Info("recording dumped to " + path)
		}
	}

	sink := &tuiSink{}
	orch, err := pipeline.New(pipeline.Options{
		Config:          cfg,
		Device:          capture,
		Transcriber:     transcriber.New(engine, selected, cfg.Language),
		Models:          mgr,
		Fetcher:         model.NewFetcher(mgr.Dir()),
		Sink:            sink,
		Hooks:           hooks,
		SilenceAdvisory: true,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	program := tea.NewProgram(newTUIModel(orch, cfg), tea.WithAltScreen())
	sink.attach(program)

	ctx, cancel := context.WithCancel(context.Background())
	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		orch.Run(ctx)
	}()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		// TUI keys still work without global hotkeys
		log.Warnf("hotkey register: %v", err)
	} else {
		defer hk.Unregister()
		go func() {
			for {
				select {
				case <-hk.Toggles():
					orch.ToggleRecording()
				case <-hk.ShowWindow():
					program.Send(ShowWindowMsg{})
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}
	cancel()
	<-orchDone
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	orchestration "github.com/koscakluka/ema-realtime/core"
	"github.com/koscakluka/ema-realtime/core/ambient"
	"github.com/koscakluka/ema-realtime/core/audio"
	"github.com/koscakluka/ema-realtime/core/audio/miniaudio"
	"github.com/koscakluka/ema-realtime/core/audio/portaudio"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/playback"
	"github.com/koscakluka/ema-realtime/core/tools"
	"github.com/koscakluka/ema-realtime/internal/config"
	"github.com/koscakluka/ema-realtime/internal/plugins"
	"github.com/koscakluka/ema-realtime/internal/telemetry"
)

const (
	startupSound    = "startup"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var metricWriter io.Writer
	if cfg.TraceExporter == config.ExporterStdout {
		metricWriter = os.Stderr
	}
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		LogWriter:    os.Stderr,
		MetricWriter: metricWriter,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to shut down telemetry:", err)
		}
	}()

	endpoint, err := cfg.Endpoint()
	if err != nil {
		return err
	}

	info := audio.EncodingInfo{SampleRate: cfg.SampleRate, Format: audio.EncodingLinear16, Channels: 1}
	devices, err := openDevices(cfg, info)
	if err != nil {
		return err
	}
	defer devices.close()

	registry := tools.NewRegistry()
	scheduler := ambient.NewTimerScheduler()
	if err := plugins.Register(registry, plugins.Config{
		WeatherURL: cfg.WeatherURL,
		NotesPath:  filepath.Join(".", "notes.txt"),
		Timers:     scheduler,
	}); err != nil {
		return err
	}

	printer := newTranscriptPrinter(os.Stdout)
	lights := ambient.NewLightController(ambient.LogLights{})

	var o *orchestration.Orchestrator
	playStartupSound := func(event events.Event) {
		if _, ok := event.(events.SessionStarted); ok {
			o.Sink().PlayNamedSound(startupSound)
		}
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithEndpoint(endpoint),
		orchestration.WithAPIKey(cfg.APIKey),
		orchestration.WithVoice(cfg.Voice),
		orchestration.WithInstructions(cfg.Instructions),
		orchestration.WithTemperature(cfg.Temperature),
		orchestration.WithTranscriptionModel(cfg.TranscriptionModel),
		orchestration.WithAudioOutput(devices.speaker,
			playback.WithEncodingInfo(info),
			playback.WithSounds(audio.SoundLibrary{Dir: cfg.SoundsDir}, devices.sounds),
		),
		orchestration.WithToolRegistry(registry),
		orchestration.WithOrchestrationTools(),
		orchestration.WithEventHandler(events.Fanout(printer.Handle, lights.Handle, playStartupSound)),
	}
	if cfg.HalfDuplex {
		opts = append(opts, orchestration.WithHalfDuplex(0))
	}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, orchestration.WithIdleTimeout(cfg.IdleTimeout, cfg.IdleTimeout))
	}

	o = orchestration.NewOrchestrator(opts...)
	defer o.Close()

	ambient.NewAlarmBridge(scheduler, o.Sink(), ambient.WithAlarmEventHandler(printer.Handle))

	printer.System("Listening. Press Ctrl+C to quit.")
	if !o.Run(ctx, devices.mic) {
		return fmt.Errorf("session failed, see logs for details")
	}
	return nil
}

type audioDevices struct {
	speaker playback.Device
	mic     orchestration.AudioInput
	sounds  playback.SoundPlayer
	close   func()
}

func openDevices(cfg config.Config, info audio.EncodingInfo) (*audioDevices, error) {
	switch cfg.AudioBackend {
	case config.BackendMiniaudio:
		client, err := miniaudio.NewClient(info)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
		}
		return &audioDevices{
			speaker: client.Playback(),
			mic:     client.Capture(cfg.ChunkFrames),
			sounds:  client.SoundPlayer(),
			close:   client.Close,
		}, nil
	default:
		return &audioDevices{
			speaker: portaudio.NewSpeaker(info, cfg.ChunkFrames),
			mic:     portaudio.NewMicrophone(info, cfg.ChunkFrames),
			close:   func() {},
		}, nil
	}
}

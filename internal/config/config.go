// Package config loads process configuration for the assistant binary from
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel        = "gpt-4o-mini-realtime-preview-2024-12-17"
	DefaultRealtimeURL  = "wss://api.openai.com/v1/realtime"
	DefaultVoice        = "alloy"
	DefaultTemperature  = 0.8
	DefaultSampleRate   = 24000
	DefaultChunkFrames  = 1024
	DefaultSoundsDir    = "sounds"
	DefaultWeatherURL   = "https://api.open-meteo.com/v1/forecast"
	DefaultOTLPEndpoint = "localhost:4317"

	BackendPortAudio = "portaudio"
	BackendMiniaudio = "miniaudio"

	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

type Config struct {
	APIKey             string
	Model              string
	RealtimeURL        string
	Voice              string
	Temperature        float64
	Instructions       string
	TranscriptionModel string

	AudioBackend string
	SampleRate   int
	ChunkFrames  int
	SoundsDir    string

	TraceExporter string
	OTLPEndpoint  string

	// IdleTimeout is zero when the session should never end on silence.
	IdleTimeout time.Duration
	HalfDuplex  bool

	WeatherURL string
}

// Load reads files (".env" when none are given) and then the environment.
// Missing env files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from lookup, which is os.Getenv outside
// of tests.
func FromEnv(lookup func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if value := strings.TrimSpace(lookup(key)); value != "" {
			return value
		}
		return fallback
	}

	cfg := Config{
		APIKey:             get("OPENAI_API_KEY", ""),
		Model:              get("REALTIME_MODEL", DefaultModel),
		RealtimeURL:        get("REALTIME_URL", DefaultRealtimeURL),
		Voice:              get("REALTIME_VOICE", DefaultVoice),
		Instructions:       get("REALTIME_INSTRUCTIONS", ""),
		TranscriptionModel: get("TRANSCRIPTION_MODEL", openai.Whisper1),
		AudioBackend:       strings.ToLower(get("AUDIO_BACKEND", BackendPortAudio)),
		SoundsDir:          get("SOUNDS_DIR", DefaultSoundsDir),
		TraceExporter:      strings.ToLower(get("TRACE_EXPORTER", ExporterNone)),
		OTLPEndpoint:       get("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		WeatherURL:         get("WEATHER_URL", DefaultWeatherURL),
	}
	if cfg.APIKey == "" {
		return Config{}, ErrMissingAPIKey
	}

	var err error
	if cfg.Temperature, err = parseFloat(get("REALTIME_TEMPERATURE", ""), DefaultTemperature); err != nil {
		return Config{}, fmt.Errorf("REALTIME_TEMPERATURE: %w", err)
	}
	if cfg.SampleRate, err = parsePositiveInt(get("AUDIO_SAMPLE_RATE", ""), DefaultSampleRate); err != nil {
		return Config{}, fmt.Errorf("AUDIO_SAMPLE_RATE: %w", err)
	}
	if cfg.ChunkFrames, err = parsePositiveInt(get("AUDIO_CHUNK_FRAMES", ""), DefaultChunkFrames); err != nil {
		return Config{}, fmt.Errorf("AUDIO_CHUNK_FRAMES: %w", err)
	}
	if value := get("IDLE_TIMEOUT", ""); value != "" {
		if cfg.IdleTimeout, err = time.ParseDuration(value); err != nil {
			return Config{}, fmt.Errorf("IDLE_TIMEOUT: %w", err)
		}
	}
	if value := get("HALF_DUPLEX", ""); value != "" {
		if cfg.HalfDuplex, err = strconv.ParseBool(value); err != nil {
			return Config{}, fmt.Errorf("HALF_DUPLEX: %w", err)
		}
	}

	switch cfg.AudioBackend {
	case BackendPortAudio, BackendMiniaudio:
	default:
		return Config{}, fmt.Errorf("AUDIO_BACKEND: unsupported backend %q", cfg.AudioBackend)
	}
	switch cfg.TraceExporter {
	case ExporterStdout, ExporterOTLP, ExporterNone:
	default:
		return Config{}, fmt.Errorf("TRACE_EXPORTER: unsupported exporter %q", cfg.TraceExporter)
	}

	return cfg, nil
}

// Endpoint is the realtime URL with the model query parameter set.
func (c Config) Endpoint() (string, error) {
	endpoint, err := url.Parse(c.RealtimeURL)
	if err != nil {
		return "", fmt.Errorf("invalid REALTIME_URL: %w", err)
	}

	query := endpoint.Query()
	query.Set("model", c.Model)
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

func parseFloat(value string, fallback float64) (float64, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(value, 64)
}

func parsePositiveInt(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	} else if parsed <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", parsed)
	}
	return parsed, nil
}

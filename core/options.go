package orchestration

import (
	"time"

	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/playback"
	"github.com/koscakluka/ema-realtime/core/realtime"
	"github.com/koscakluka/ema-realtime/core/tools"
)

type OrchestratorOption func(*Orchestrator)

// WithEndpoint sets the websocket URL of the realtime API, including the
// model query parameter.
func WithEndpoint(url string) OrchestratorOption {
	return func(o *Orchestrator) { o.url = url }
}

// WithAPIKey authenticates against the realtime API.
func WithAPIKey(key string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.header.Set("Authorization", "Bearer "+key)
		o.header.Set("OpenAI-Beta", "realtime=v1")
	}
}

func WithHeader(key, value string) OrchestratorOption {
	return func(o *Orchestrator) { o.header.Set(key, value) }
}

func WithVoice(voice string) OrchestratorOption {
	return func(o *Orchestrator) { o.session.Voice = voice }
}

func WithInstructions(instructions string) OrchestratorOption {
	return func(o *Orchestrator) { o.session.Instructions = instructions }
}

func WithTemperature(temperature float64) OrchestratorOption {
	return func(o *Orchestrator) { o.session.Temperature = temperature }
}

// WithTranscriptionModel selects the model transcribing user speech. An
// empty model turns input transcription off.
func WithTranscriptionModel(model string) OrchestratorOption {
	return func(o *Orchestrator) {
		if model == "" {
			o.session.InputAudioTranscription = nil
			return
		}
		o.session.InputAudioTranscription = &realtime.InputAudioTranscription{Model: model}
	}
}

// WithTurnDetection overrides server side voice activity detection. Nil
// disables it.
func WithTurnDetection(turnDetection *realtime.TurnDetection) OrchestratorOption {
	return func(o *Orchestrator) { o.session.TurnDetection = turnDetection }
}

// WithAudioOutput plays assistant audio on device. Sink options configure
// sounds, reopen policy and the like.
func WithAudioOutput(device playback.Device, opts ...playback.SinkOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.outputDevice = device
		o.sinkOptions = append(o.sinkOptions, opts...)
	}
}

// WithToolRegistry replaces the registry tools are resolved from.
func WithToolRegistry(registry *tools.Registry) OrchestratorOption {
	return func(o *Orchestrator) {
		if registry != nil {
			o.registry = registry
		}
	}
}

// WithTools registers tools that run inline on the event loop.
func WithTools(ts ...tools.Tool) OrchestratorOption {
	return func(o *Orchestrator) {
		for _, tool := range ts {
			o.registerTool(tool)
		}
	}
}

// WithLongRunningTool registers a tool that runs in the background. The
// assistant tells the user earlyMessage while it works.
func WithLongRunningTool(tool tools.Tool, earlyMessage string) OrchestratorOption {
	return func(o *Orchestrator) { o.registerTool(tool, tools.WithEarlyMessage(earlyMessage)) }
}

// WithOrchestrationTools lets the assistant control listening, volume and
// the end of the conversation.
func WithOrchestrationTools() OrchestratorOption {
	return func(o *Orchestrator) { o.withOrchestrationTools = true }
}

// WithEventHandler receives every event of every session.
func WithEventHandler(handler events.Handler) OrchestratorOption {
	return func(o *Orchestrator) { o.eventHandler = handler }
}

// WithHalfDuplex disables server side turn detection while the assistant
// answers and turns it back on delay after playback ended. It keeps the
// assistant from interrupting itself on setups without echo cancellation.
func WithHalfDuplex(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.halfDuplex = true
		o.halfDuplexDelay = delay
	}
}

// WithIdleTimeout ends the session when the user does not start speaking
// within initial after the session started, or within afterResponse after
// the assistant finished speaking.
func WithIdleTimeout(initial, afterResponse time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.idleInitial = initial
		o.idleAfterResponse = afterResponse
	}
}

// WithMicInterval sets the pause between microphone reads.
func WithMicInterval(interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.micInterval = interval
		}
	}
}

// WithDeliveryTimeout bounds how long background tools wait for the event
// loop to take their results.
func WithDeliveryTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.deliveryTimeout = timeout }
}

type OrchestrateOptions struct {
	onTranscription        func(transcript string)
	onSpeakingStateChanged func(isSpeaking bool)
	onResponseEnd          func(transcript string)
	onAudioStarted         func()
	onAudioEnded           func(interrupted bool)
	onToolCall             func(name string)
	onInputAudio           func(audio []byte)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithTranscriptionCallback registers a callback for final transcriptions of
// user speech.
func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscription = callback
	}
}

// WithSpeakingStateChangedCallback registers a callback for the server side
// detection of the user starting and stopping to speak.
func WithSpeakingStateChangedCallback(callback func(isSpeaking bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onSpeakingStateChanged = callback
	}
}

// WithResponseEndCallback registers a callback receiving the transcript of
// every completed assistant response.
func WithResponseEndCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponseEnd = callback
	}
}

func WithAudioStartedCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudioStarted = callback
	}
}

func WithAudioEndedCallback(callback func(interrupted bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudioEnded = callback
	}
}

func WithToolCallCallback(callback func(name string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onToolCall = callback
	}
}

// WithInputAudioCallback registers a callback for raw input audio chunks.
//
// The provided slice is passed through as-is (no defensive copy). The
// callback runs inline on the microphone pump and should not block.
func WithInputAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInputAudio = callback
	}
}

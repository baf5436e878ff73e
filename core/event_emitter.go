package orchestration

import "github.com/koscakluka/ema-realtime/core/events"

func newCallbackEventEmitter(opts OrchestrateOptions) events.Handler {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.UserSpeechStarted:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(true)
			}
		case events.UserSpeechEnded:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(false)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantResponseFinal:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd(typedEvent.Transcript)
			}
		case events.AssistantPlaybackStarted:
			if opts.onAudioStarted != nil {
				opts.onAudioStarted()
			}
		case events.AssistantPlaybackEnded:
			if opts.onAudioEnded != nil {
				opts.onAudioEnded(typedEvent.Interrupted)
			}
		case events.ToolCallStarted:
			if opts.onToolCall != nil {
				opts.onToolCall(typedEvent.Name)
			}
		}
	}
}

package events

const (
	// KindAssistantPlaybackStarted identifies the sink going busy.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the sink going idle.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted marks the start of assistant playback.
type AssistantPlaybackStarted struct{ Base }

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted() AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted)}
}

// AssistantPlaybackEnded marks the end of assistant playback. Interrupted is
// set when the queue was flushed by a barge-in rather than drained.
type AssistantPlaybackEnded struct {
	Base
	Interrupted bool
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(interrupted bool) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Interrupted: interrupted}
}

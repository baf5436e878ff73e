package realtime

import (
	"context"
	"encoding/json"

	openairt "github.com/WqyJh/go-openai-realtime"
	"github.com/koscakluka/ema-realtime/core/events"
)

// Server event types handled by the router.
var (
	EventResponseDone              = string(openairt.ServerEventTypeResponseDone)
	EventSpeechStarted             = string(openairt.ServerEventTypeInputAudioBufferSpeechStarted)
	EventSpeechStopped             = string(openairt.ServerEventTypeInputAudioBufferSpeechStopped)
	EventTranscriptionCompleted    = string(openairt.ServerEventTypeConversationItemInputAudioTranscriptionCompleted)
	EventResponseAudioDelta        = string(openairt.ServerEventTypeResponseAudioDelta)
	EventConversationItemTruncated = string(openairt.ServerEventTypeConversationItemTruncated)
	EventError                     = string(openairt.ServerEventTypeError)
	EventSessionCreated            = string(openairt.ServerEventTypeSessionCreated)
	EventSessionUpdated            = string(openairt.ServerEventTypeSessionUpdated)
)

const audioProgressInterval = 100

// Playback is the part of the output sink the router drives.
type Playback interface {
	AddChunk(encoded string)
	ClearAndStop()
}

// ToolDispatcher receives responses that requested tool calls.
type ToolDispatcher interface {
	HandleResponseDone(ctx context.Context, view *ResponseDoneView)
}

// Router demultiplexes inbound frames by their type. It is not safe for
// concurrent use and is meant to run on the Loop.
type Router struct {
	playback Playback
	tools    ToolDispatcher
	emit     events.Handler

	audioChunks int
}

func NewRouter(playback Playback, tools ToolDispatcher, emit events.Handler) *Router {
	if emit == nil {
		emit = func(events.Event) {}
	}
	return &Router{playback: playback, tools: tools, emit: emit}
}

// HandleMessage decodes a raw frame and processes it. Frames that are not
// JSON objects are logged and dropped.
func (r *Router) HandleMessage(ctx context.Context, data []byte) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("dropping malformed frame", "error", err)
		return
	} else if payload == nil {
		logger.Warn("dropping frame without payload")
		return
	}

	eventType, _ := payload["type"].(string)
	r.ProcessEvent(ctx, eventType, payload)
}

// ProcessEvent dispatches one decoded event. Unknown types are ignored.
func (r *Router) ProcessEvent(ctx context.Context, eventType string, payload map[string]any) {
	switch eventType {
	case EventResponseDone:
		r.handleResponseDone(ctx, payload)

	case EventSpeechStarted:
		if r.playback != nil {
			r.playback.ClearAndStop()
		}
		r.emit(events.NewUserSpeechStarted())

	case EventSpeechStopped:
		r.emit(events.NewUserSpeechEnded())

	case EventTranscriptionCompleted:
		r.emit(events.NewUserTranscriptFinal(stringField(payload, "item_id"), stringField(payload, "transcript")))

	case EventResponseAudioDelta:
		r.handleAudioDelta(payload)

	case EventConversationItemTruncated:
		logger.Info("conversation item truncated", "item_id", stringField(payload, "item_id"))

	case EventError:
		raw, _ := json.Marshal(payload)
		logger.Error("realtime api reported an error",
			"message", stringField(objectField(payload, "error"), "message"),
			"payload", string(raw),
		)

	case EventSessionCreated:
		logger.Info("session created", "session_id", stringField(objectField(payload, "session"), "id"))

	case EventSessionUpdated:
		logger.Info("session updated")

	default:
		logger.Debug("ignoring event", "type", eventType)
	}
}

func (r *Router) handleResponseDone(ctx context.Context, payload map[string]any) {
	view := NewResponseDoneView(payload)
	logger.Debug("response done",
		"response_id", view.ResponseID(),
		"completed", view.IsCompleted(),
		"audio_chunks", r.audioChunks,
	)
	r.audioChunks = 0

	r.emit(events.NewAssistantResponseFinal(view.ResponseID(), view.MessageItemID(), view.Transcript()))

	if !view.ContainsToolCall() {
		return
	} else if r.tools == nil {
		logger.Warn("response requested tools but no dispatcher is configured")
		return
	}
	r.tools.HandleResponseDone(ctx, view)
}

func (r *Router) handleAudioDelta(payload map[string]any) {
	delta := stringField(payload, "delta")
	if delta == "" {
		logger.Debug("ignoring empty audio delta")
		return
	} else if r.playback == nil {
		return
	}

	r.playback.AddChunk(delta)
	r.audioChunks++
	if r.audioChunks%audioProgressInterval == 0 {
		logger.Info("received response audio", "chunks", r.audioChunks)
	}
}

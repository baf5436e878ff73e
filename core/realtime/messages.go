package realtime

import (
	openairt "github.com/WqyJh/go-openai-realtime"
)

// Client event types.
var (
	TypeSessionUpdate          = string(openairt.ClientEventTypeSessionUpdate)
	TypeInputAudioBufferAppend = string(openairt.ClientEventTypeInputAudioBufferAppend)
	TypeConversationItemCreate = string(openairt.ClientEventTypeConversationItemCreate)
	TypeResponseCreate         = string(openairt.ClientEventTypeResponseCreate)
)

const ItemTypeFunctionCallOutput = "function_call_output"

var (
	FormatPCM16      = string(openairt.AudioFormatPcm16)
	TurnDetectionVAD = string(openairt.ClientTurnDetectionTypeServerVad)
	ModalityText     = string(openairt.ModalityText)
	ModalityAudio    = string(openairt.ModalityAudio)
)

// AudioAppend streams one base64 encoded chunk of microphone audio.
type AudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

func NewAudioAppend(encoded string) AudioAppend {
	return AudioAppend{Type: TypeInputAudioBufferAppend, Audio: encoded}
}

// ResponseCreate asks the server to continue the conversation with a new
// response. Response is omitted for a plain continue.
type ResponseCreate struct {
	Type     string          `json:"type"`
	Response *ResponseParams `json:"response,omitempty"`
}

type ResponseParams struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

// NewResponseCreate is the plain continue frame.
func NewResponseCreate() ResponseCreate {
	return ResponseCreate{Type: TypeResponseCreate}
}

// NewToolStartedNotice asks the assistant to tell the user that a long
// running tool was started. It is a response request rather than a function
// output, so the call stays open until the real result arrives.
func NewToolStartedNotice(notice string) ResponseCreate {
	return ResponseCreate{
		Type: TypeResponseCreate,
		Response: &ResponseParams{
			Modalities:   []string{ModalityText, ModalityAudio},
			Instructions: "Briefly tell the user, in their language: " + notice,
		},
	}
}

type ConversationItemCreate struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

type ConversationItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// NewFunctionCallOutput carries the JSON encoded result of a tool call.
func NewFunctionCallOutput(callID, output string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: TypeConversationItemCreate,
		Item: ConversationItem{Type: ItemTypeFunctionCallOutput, CallID: callID, Output: output},
	}
}

// ToolSchema advertises one function tool in session.update.
type ToolSchema struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

type InputAudioTranscription struct {
	Model string `json:"model"`
}

// SessionConfig is the session section of session.update.
type SessionConfig struct {
	TurnDetection           *TurnDetection           `json:"turn_detection"`
	InputAudioFormat        string                   `json:"input_audio_format"`
	OutputAudioFormat       string                   `json:"output_audio_format"`
	InputAudioTranscription *InputAudioTranscription `json:"input_audio_transcription,omitempty"`
	Voice                   string                   `json:"voice"`
	Instructions            string                   `json:"instructions"`
	Modalities              []string                 `json:"modalities"`
	Temperature             float64                  `json:"temperature"`
	Tools                   []ToolSchema             `json:"tools"`
	ToolChoice              string                   `json:"tool_choice,omitempty"`
}

type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

func NewSessionUpdate(session SessionConfig) SessionUpdate {
	if session.Tools == nil {
		session.Tools = []ToolSchema{}
	}
	return SessionUpdate{Type: TypeSessionUpdate, Session: session}
}

// TurnDetectionUpdate only touches turn detection. A nil TurnDetection is
// sent as null and disables server side voice activity detection.
type TurnDetectionUpdate struct {
	Type    string `json:"type"`
	Session struct {
		TurnDetection *TurnDetection `json:"turn_detection"`
	} `json:"session"`
}

func NewTurnDetectionUpdate(turnDetection *TurnDetection) TurnDetectionUpdate {
	update := TurnDetectionUpdate{Type: TypeSessionUpdate}
	update.Session.TurnDetection = turnDetection
	return update
}

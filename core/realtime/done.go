package realtime

import (
	"strings"
	"sync"
)

const (
	outputTypeMessage      = "message"
	outputTypeFunctionCall = "function_call"
	contentTypeText        = "text"
	contentTypeAudio       = "audio"
	responseStatusComplete = "completed"
)

// FunctionCall is one function_call item of a response.done output list.
// An empty Name is a valid state handled as an unknown tool.
type FunctionCall struct {
	Name      string
	CallID    string
	Arguments string
}

// ResponseDoneView reads a response.done payload. Values are derived from
// the raw payload on first access and cached for the lifetime of the view.
type ResponseDoneView struct {
	payload map[string]any

	once             sync.Once
	responseID       string
	status           string
	messageItemID    string
	transcript       string
	containsToolCall bool
	functionCalls    []FunctionCall
}

func NewResponseDoneView(payload map[string]any) *ResponseDoneView {
	return &ResponseDoneView{payload: payload}
}

// Payload returns the raw event the view was built from.
func (v *ResponseDoneView) Payload() map[string]any { return v.payload }

func (v *ResponseDoneView) ResponseID() string {
	v.once.Do(v.derive)
	return v.responseID
}

// IsCompleted reports whether the response finished with status completed.
func (v *ResponseDoneView) IsCompleted() bool {
	v.once.Do(v.derive)
	return v.status == responseStatusComplete
}

// MessageItemID is the id of the first message item.
func (v *ResponseDoneView) MessageItemID() string {
	v.once.Do(v.derive)
	return v.messageItemID
}

// Transcript concatenates text and audio transcripts of all message items
// in output order.
func (v *ResponseDoneView) Transcript() string {
	v.once.Do(v.derive)
	return v.transcript
}

func (v *ResponseDoneView) ContainsToolCall() bool {
	v.once.Do(v.derive)
	return v.containsToolCall
}

// FunctionCalls returns the function_call items in output order.
func (v *ResponseDoneView) FunctionCalls() []FunctionCall {
	v.once.Do(v.derive)
	return append([]FunctionCall(nil), v.functionCalls...)
}

func (v *ResponseDoneView) derive() {
	response := objectField(v.payload, "response")
	v.responseID = stringField(response, "id")
	v.status = stringField(response, "status")

	var transcript strings.Builder
	for _, item := range objects(listField(response, "output")) {
		switch stringField(item, "type") {
		case outputTypeMessage:
			if id := stringField(item, "id"); v.messageItemID == "" && id != "" {
				v.messageItemID = id
			}
			for _, part := range objects(listField(item, "content")) {
				switch stringField(part, "type") {
				case contentTypeText:
					transcript.WriteString(stringField(part, "text"))
				case contentTypeAudio:
					transcript.WriteString(stringField(part, "transcript"))
				}
			}
		case outputTypeFunctionCall:
			v.containsToolCall = true
			v.functionCalls = append(v.functionCalls, FunctionCall{
				Name:      stringField(item, "name"),
				CallID:    stringField(item, "call_id"),
				Arguments: stringField(item, "arguments"),
			})
		}
	}
	v.transcript = transcript.String()
}

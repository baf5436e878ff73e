package orchestration

import (
	"context"

	"github.com/koscakluka/ema-realtime/core/tools"
)

func orchestrationTools(o *Orchestrator) []tools.Tool {
	return []tools.Tool{
		tools.NewTool("recording_control", "Turn on or off sound recording, might be referred to as 'listening'",
			func(_ context.Context, parameters struct {
				IsRecording bool `json:"is_recording" jsonschema:"description=Whether to record or not"`
			}) (any, error) {
				o.SetListening(parameters.IsRecording)
				return "Success. Respond with a very short phrase", nil
			}),
		tools.NewTool("set_volume", "Set how loud the assistant speaks",
			func(_ context.Context, parameters struct {
				Level float64 `json:"level" jsonschema:"description=Volume from 0 (silent) to 1 (loudest),minimum=0,maximum=1"`
			}) (any, error) {
				return map[string]any{"volume": o.sink.SetVolume(parameters.Level)}, nil
			}),
		tools.NewTool("get_volume", "Get how loud the assistant currently speaks",
			func(context.Context, struct{}) (any, error) {
				return map[string]any{"volume": o.sink.Volume()}, nil
			}),
		tools.NewTool("stop_conversation", "End the conversation, when the user says goodbye or asks to stop talking",
			func(context.Context, struct{}) (any, error) {
				o.StopAfterResponse(defaultStopGrace)
				return "The conversation ends after this response. Say a very short goodbye", nil
			}),
	}
}

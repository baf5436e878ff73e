// Package events defines the typed signals emitted by the realtime session
// core.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session_state.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - tool_call.*
//   - alarm.*
//
// session_state events
//
//   - SessionStarted (session_state.started): the duplex connection is up and
//     the session was initialized.
//   - SessionEnded (session_state.ended): the session was torn down; carries
//     the reason.
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): server side voice
//     activity detection reported the user started speaking.
//   - UserSpeechEnded (user_input.speech_ended): the user stopped speaking.
//   - UserTranscriptFinal (user_input.transcript_final): final transcript of
//     the user's utterance.
//
// assistant_response events
//
//   - AssistantResponseFinal (assistant_response.final): the remote side
//     finished a response; carries the spoken/written transcript.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): the output sink
//     went busy. Emitted once per busy period, not per chunk.
//   - AssistantPlaybackEnded (assistant_playback.ended): the output sink went
//     idle, either because the queue drained or because playback was
//     interrupted.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed.
//
// alarm events
//
//   - AlarmFired (alarm.fired): an external alarm went off and its sound was
//     played, or reported as not played.
package events

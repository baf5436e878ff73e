package events

// KindAssistantResponseFinal identifies a completed assistant response.
const KindAssistantResponseFinal Kind = "assistant_response.final"

// AssistantResponseFinal marks completion of an assistant response and
// carries its transcript. Transcript is empty for responses that only called
// tools.
type AssistantResponseFinal struct {
	Base
	ResponseID string
	ItemID     string
	Transcript string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(responseID, itemID, transcript string) AssistantResponseFinal {
	return AssistantResponseFinal{
		Base:       NewBase(KindAssistantResponseFinal),
		ResponseID: responseID,
		ItemID:     itemID,
		Transcript: transcript,
	}
}

package domain

import "time"

// LiveEventKind identifies a decoded server event on a live connection.
type LiveEventKind string

const (
	LiveEventOpen                 LiveEventKind = "open"
	LiveEventAudio                LiveEventKind = "audio"
	LiveEventInputTranscript      LiveEventKind = "input_transcript"
	LiveEventOutputTranscript     LiveEventKind = "output_transcript"
	LiveEventModelText            LiveEventKind = "model_text"
	LiveEventThought              LiveEventKind = "thought"
	LiveEventToolCall             LiveEventKind = "tool_call"
	LiveEventToolCallCancellation LiveEventKind = "tool_call_cancellation"
	LiveEventTurnComplete         LiveEventKind = "turn_complete"
	LiveEventInterrupted          LiveEventKind = "interrupted"
	LiveEventGoAway               LiveEventKind = "go_away"
	LiveEventResumption           LiveEventKind = "resumption"
)

// LiveEvent is one server event, delivered in arrival order.
type LiveEvent struct {
	Kind LiveEventKind

	// Text carries transcript, model text and thought deltas.
	Text string

	// Audio carries a base64 payload and its mime type.
	Audio MediaBlob

	ToolCalls   []ToolCall
	CanceledIDs []string

	TimeLeft time.Duration

	Handle    string
	Resumable bool
}

package gemini

import (
	"strings"
	"time"

	"livemic/internal/domain"
	"livemic/internal/ports"
)

// Client messages.

type clientMessage struct {
	Setup         *setupMessage         `json:"setup,omitempty"`
	RealtimeInput *realtimeInputMessage `json:"realtimeInput,omitempty"`
	ToolResponse  *toolResponseMessage  `json:"toolResponse,omitempty"`
}

type setupMessage struct {
	Model                    string                  `json:"model"`
	GenerationConfig         generationConfig        `json:"generationConfig"`
	SystemInstruction        *content                `json:"systemInstruction,omitempty"`
	Tools                    []tool                  `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}               `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}               `json:"outputAudioTranscription,omitempty"`
	SessionResumption        sessionResumptionConfig `json:"sessionResumption"`
}

type generationConfig struct {
	ResponseModalities []string        `json:"responseModalities"`
	SpeechConfig       *speechConfig   `json:"speechConfig,omitempty"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type thinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

type content struct {
	Parts []part `json:"parts"`
}

type tool struct {
	FunctionDeclarations []domain.ToolDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         *struct{}                `json:"googleSearch,omitempty"`
}

type sessionResumptionConfig struct {
	Handle string `json:"handle,omitempty"`
}

type realtimeInputMessage struct {
	MediaChunks []domain.MediaBlob `json:"mediaChunks"`
}

type toolResponseMessage struct {
	FunctionResponses []domain.ToolResult `json:"functionResponses"`
}

// Server messages.

type serverMessage struct {
	SetupComplete           *struct{}                `json:"setupComplete,omitempty"`
	ServerContent           *serverContent           `json:"serverContent,omitempty"`
	ToolCall                *toolCallMessage         `json:"toolCall,omitempty"`
	ToolCallCancellation    *toolCallCancellation    `json:"toolCallCancellation,omitempty"`
	GoAway                  *goAway                  `json:"goAway,omitempty"`
	SessionResumptionUpdate *sessionResumptionUpdate `json:"sessionResumptionUpdate,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type part struct {
	Text       string            `json:"text,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
	InlineData *domain.MediaBlob `json:"inlineData,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

type toolCallMessage struct {
	FunctionCalls []domain.ToolCall `json:"functionCalls,omitempty"`
}

type toolCallCancellation struct {
	IDs []string `json:"ids,omitempty"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type sessionResumptionUpdate struct {
	NewHandle string `json:"newHandle,omitempty"`
	Resumable bool   `json:"resumable,omitempty"`
}

func buildSetup(model string, cfg ports.LiveConfig) *setupMessage {
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	modality := strings.ToUpper(strings.TrimSpace(cfg.ResponseModality))
	if modality == "" {
		modality = "AUDIO"
	}

	setup := &setupMessage{
		Model: model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{modality},
		},
		SessionResumption: sessionResumptionConfig{Handle: cfg.ResumptionHandle},
	}
	if cfg.Voice != "" && modality == "AUDIO" {
		setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice}},
		}
	}
	if cfg.ThinkingBudget != 0 {
		setup.GenerationConfig.ThinkingConfig = &thinkingConfig{
			ThinkingBudget:  cfg.ThinkingBudget,
			IncludeThoughts: cfg.ThinkingBudget > 0,
		}
	}
	if text := strings.TrimSpace(cfg.SystemInstruction); text != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: text}}}
	}
	if len(cfg.Tools) > 0 {
		setup.Tools = append(setup.Tools, tool{FunctionDeclarations: cfg.Tools})
	}
	if cfg.SearchTool {
		setup.Tools = append(setup.Tools, tool{GoogleSearch: &struct{}{}})
	}
	if cfg.Transcription {
		setup.InputAudioTranscription = &struct{}{}
		setup.OutputAudioTranscription = &struct{}{}
	}
	return setup
}

// translate flattens one server message into events. Within a message,
// interruption precedes content and turn completion comes last.
func translate(msg serverMessage) []domain.LiveEvent {
	var events []domain.LiveEvent

	if update := msg.SessionResumptionUpdate; update != nil {
		events = append(events, domain.LiveEvent{
			Kind:      domain.LiveEventResumption,
			Handle:    update.NewHandle,
			Resumable: update.Resumable,
		})
	}
	if msg.GoAway != nil {
		events = append(events, domain.LiveEvent{
			Kind:     domain.LiveEventGoAway,
			TimeLeft: parseTimeLeft(msg.GoAway.TimeLeft),
		})
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted {
			events = append(events, domain.LiveEvent{Kind: domain.LiveEventInterrupted})
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, domain.LiveEvent{Kind: domain.LiveEventInputTranscript, Text: sc.InputTranscription.Text})
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				switch {
				case p.InlineData != nil && p.InlineData.Data != "":
					events = append(events, domain.LiveEvent{Kind: domain.LiveEventAudio, Audio: *p.InlineData})
				case p.Thought && p.Text != "":
					events = append(events, domain.LiveEvent{Kind: domain.LiveEventThought, Text: p.Text})
				case p.Text != "":
					events = append(events, domain.LiveEvent{Kind: domain.LiveEventModelText, Text: p.Text})
				}
			}
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, domain.LiveEvent{Kind: domain.LiveEventOutputTranscript, Text: sc.OutputTranscription.Text})
		}
		if sc.TurnComplete {
			events = append(events, domain.LiveEvent{Kind: domain.LiveEventTurnComplete})
		}
	}

	if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
		events = append(events, domain.LiveEvent{Kind: domain.LiveEventToolCall, ToolCalls: msg.ToolCall.FunctionCalls})
	}
	if msg.ToolCallCancellation != nil {
		events = append(events, domain.LiveEvent{Kind: domain.LiveEventToolCallCancellation, CanceledIDs: msg.ToolCallCancellation.IDs})
	}

	return events
}

// parseTimeLeft reads protobuf duration strings such as "30s" or "1.5s".
func parseTimeLeft(value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

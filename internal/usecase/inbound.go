package usecase

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"livemic/internal/domain"
	"livemic/internal/pcm"
	"livemic/internal/playback"
	"livemic/internal/ports"
)

// handleEvent applies one server event. Events are handled strictly in
// arrival order by the single consumer goroutine of the session.
func (c *LiveController) handleEvent(active *activeSession, conn ports.LiveConnection, event domain.LiveEvent) {
	if !c.isCurrent(active) {
		return
	}

	switch event.Kind {
	case domain.LiveEventOpen:
		c.goLive(active)
	case domain.LiveEventResumption:
		if c.resumption.Update(event.Handle, event.Resumable) {
			c.logger.Debug("resumption handle updated", "session", active.id)
		}
	case domain.LiveEventGoAway:
		c.mu.Lock()
		c.goAway = event.TimeLeft
		c.mu.Unlock()
		c.logger.Info("server announced disconnect", "session", active.id, "time_left", event.TimeLeft)
		c.events.GoAway(event.TimeLeft)
	case domain.LiveEventAudio:
		c.scheduleAudio(active, event.Audio)
	case domain.LiveEventInputTranscript:
		c.appendTranscript(domain.TranscriptRoleUser, event.Text)
	case domain.LiveEventOutputTranscript, domain.LiveEventModelText:
		c.appendTranscript(domain.TranscriptRoleModel, event.Text)
	case domain.LiveEventThought:
		if event.Text != "" {
			c.events.ReasoningChanged(c.transcript.AppendReasoning(event.Text))
		}
	case domain.LiveEventTurnComplete:
		c.clearReasoning()
	case domain.LiveEventInterrupted:
		if speaker := c.speakerFor(active); speaker != nil {
			if err := speaker.Interrupt(); err != nil {
				c.logger.Debug("playback interrupt failed", "session", active.id, "error", err)
			}
		}
		c.metrics.Interrupted()
		c.clearReasoning()
	case domain.LiveEventToolCall:
		c.answerToolCalls(active, conn, event.ToolCalls)
	case domain.LiveEventToolCallCancellation:
		c.logger.Info("tool calls cancelled by server", "session", active.id, "ids", event.CanceledIDs)
	default:
		c.logger.Debug("ignoring live event", "session", active.id, "kind", event.Kind)
	}
}

func (c *LiveController) speakerFor(active *activeSession) *playback.Scheduler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return active.speaker
}

func (c *LiveController) scheduleAudio(active *activeSession, blob domain.MediaBlob) {
	speaker := c.speakerFor(active)
	if speaker == nil {
		return
	}

	rate := pcm.RateFromMIME(blob.MimeType, c.cfg.OutputSampleRate)
	chunk, err := pcm.DecodeBase64(blob.Data, rate, 1)
	if err != nil {
		c.metrics.DecodeError()
		c.logger.Warn("dropping undecodable audio chunk", "session", active.id, "bytes", len(blob.Data), "error", err)
		return
	}

	if _, err := speaker.Schedule(chunk); err != nil {
		if !errors.Is(err, playback.ErrClosed) {
			c.logger.Warn("failed to schedule audio chunk", "session", active.id, "error", err)
		}
		return
	}
	c.metrics.ChunkScheduled()
}

func (c *LiveController) appendTranscript(role domain.TranscriptRole, text string) {
	if c.transcript.AppendDelta(role, text) {
		c.events.TranscriptChanged(c.transcript.Entries())
	}
}

func (c *LiveController) clearReasoning() {
	if c.transcript.ClearReasoning() {
		c.events.ReasoningChanged("")
	}
}

// answerToolCalls dispatches every call of a batch and replies with a single
// tool response carrying all results.
func (c *LiveController) answerToolCalls(active *activeSession, conn ports.LiveConnection, calls []domain.ToolCall) {
	if len(calls) == 0 {
		return
	}

	results := make([]domain.ToolResult, 0, len(calls))
	for _, call := range calls {
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		c.transcript.AddToolCall(call)
		c.events.TranscriptChanged(c.transcript.Entries())

		c.logger.Info("dispatching tool call", "session", active.id, "tool", call.Name, "id", call.ID)
		results = append(results, c.tools.Dispatch(active.ctx, call))
	}

	if err := conn.SendToolResponse(results); err != nil && c.isCurrent(active) {
		c.reportError(domain.ErrorCodeTool, fmt.Sprintf("failed to send tool results: %v", err))
	}
}

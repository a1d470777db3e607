package usecase

import (
	"context"

	"livemic/internal/domain"
	"livemic/internal/ports"
)

type transcriptFinalizer struct {
	rules     ports.RulesEngine
	clipboard ports.Clipboard
	events    ports.EventSink
}

func newTranscriptFinalizer(rules ports.RulesEngine, clipboard ports.Clipboard, events ports.EventSink) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, clipboard: clipboard, events: events}
}

// Finalize applies the substitution rules to raw and copies the result. A
// clipboard failure is reported but still returns the transformed text.
func (f transcriptFinalizer) Finalize(ctx context.Context, raw string) (domain.ExportResult, error) {
	transformed := raw
	if f.rules != nil {
		var err error
		transformed, err = f.rules.Apply(raw)
		if err != nil {
			f.events.SessionError(domain.ErrorCodeRules, err.Error())
			return domain.ExportResult{}, err
		}
	}

	result := domain.ExportResult{
		RawTranscript:   raw,
		FinalTranscript: transformed,
	}
	if f.clipboard == nil {
		return result, nil
	}

	if err := f.clipboard.SetText(ctx, transformed); err != nil {
		f.events.SessionError(domain.ErrorCodeClipboard, "transcript ready but clipboard write failed")
		return result, nil
	}
	result.Copied = true
	return result, nil
}

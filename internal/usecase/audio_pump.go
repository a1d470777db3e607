package usecase

import (
	"errors"
	"fmt"
	"io"

	"livemic/internal/domain"
	"livemic/internal/pcm"
	"livemic/internal/ports"
)

const (
	defaultFrameSamples = 4096
	micSampleRate       = 16000
)

var errCaptureEnded = errors.New("microphone capture ended")

// pumpAudioFrames reads whole mic frames and hands them to onFrame until the
// capture ends. A send failure from onFrame stops the pump and is reported as
// an audio stream error; a capture failure is passed to onEnd.
func pumpAudioFrames(
	audio ports.AudioSession,
	frameSamples int,
	onFrame func(samples []float32) error,
	onEnd func(err error),
	events ports.EventSink,
	done func(),
) {
	defer done()

	if frameSamples < 256 {
		frameSamples = defaultFrameSamples
	}

	buf := make([]byte, frameSamples*2)
	for {
		if _, err := io.ReadFull(audio, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = errCaptureEnded
			}
			onEnd(err)
			return
		}

		chunk, err := pcm.Decode(buf, micSampleRate, 1)
		if err != nil {
			continue
		}
		if sendErr := onFrame(chunk.Samples); sendErr != nil {
			events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
			return
		}
	}
}

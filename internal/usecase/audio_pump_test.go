package usecase

import (
	"errors"
	"io"
	"sync"
	"testing"

	"livemic/internal/domain"
	"livemic/internal/pcm"
)

func TestPumpAudioFramesReadsWholeFrames(t *testing.T) {
	t.Parallel()

	frame := pcm.Encode(make([]float32, 256))
	data := append(append([]byte{}, frame...), frame...)
	audio := &fakeAudioSession{chunks: [][]byte{data[:100], data[100:700], data[700:]}}
	events := &fakeEventSink{}

	var (
		mu     sync.Mutex
		frames []int
		ended  error
	)
	done := make(chan struct{})
	go pumpAudioFrames(audio, 256,
		func(samples []float32) error {
			mu.Lock()
			defer mu.Unlock()
			frames = append(frames, len(samples))
			return nil
		},
		func(err error) { ended = err },
		events,
		func() { close(done) },
	)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 2 || frames[0] != 256 || frames[1] != 256 {
		t.Fatalf("expected two whole frames, got %v", frames)
	}
	if !errors.Is(ended, errCaptureEnded) {
		t.Fatalf("expected capture end, got %v", ended)
	}
}

func TestPumpAudioFramesReportsSendError(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{pcm.Encode(make([]float32, 256))}}
	events := &fakeEventSink{}
	done := make(chan struct{})
	endCalled := false

	go pumpAudioFrames(audio, 256,
		func([]float32) error { return errors.New("send failed") },
		func(error) { endCalled = true },
		events,
		func() { close(done) },
	)
	<-done

	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeAudioStream {
		t.Fatalf("expected audio stream error")
	}
	if endCalled {
		t.Fatalf("send failure must not be reported as capture end")
	}
}

func TestPumpAudioFramesReportsReadError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("read failed")
	audio := &errorAudioSession{err: readErr}
	done := make(chan struct{})
	var ended error

	go pumpAudioFrames(audio, 256,
		func([]float32) error { return nil },
		func(err error) { ended = err },
		&fakeEventSink{},
		func() { close(done) },
	)
	<-done

	if !errors.Is(ended, readErr) {
		t.Fatalf("expected read error to reach onEnd, got %v", ended)
	}
}

type errorAudioSession struct {
	err error
}

func (s *errorAudioSession) Read(_ []byte) (int, error) { return 0, s.err }
func (s *errorAudioSession) Close() error               { return nil }
func (s *errorAudioSession) Stop() error                { return nil }

var _ io.ReadCloser = (*errorAudioSession)(nil)

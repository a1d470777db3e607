package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"livemic/internal/pcm"
	"livemic/internal/ports"
)

// errSpeakerClosed is returned when playing into a closed speaker.
var errSpeakerClosed = errors.New("speaker closed")

// FFPlaySpeakers opens ffplay processes that read s16le PCM on stdin.
type FFPlaySpeakers struct {
	command string
}

func NewFFPlaySpeakers(command string) *FFPlaySpeakers {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlaySpeakers{command: command}
}

// Open starts a speaker for one session.
func (f *FFPlaySpeakers) Open(ctx context.Context, sampleRate int, channels int) (ports.AudioSink, error) {
	if sampleRate <= 0 {
		sampleRate = pcm.OutputSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	speaker := &ffplaySpeaker{
		ctx:        ctx,
		command:    f.command,
		sampleRate: sampleRate,
		channels:   channels,
	}
	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	if err := speaker.startLocked(); err != nil {
		return nil, err
	}
	return speaker, nil
}

type ffplaySpeaker struct {
	ctx        context.Context
	command    string
	sampleRate int
	channels   int

	mu     sync.Mutex
	child  *childProcess
	stdin  io.WriteCloser
	closed bool
}

func (s *ffplaySpeaker) startLocked() error {
	// ffplay takes a channel layout rather than an ffmpeg-style channel count.
	layout := "mono"
	if s.channels == 2 {
		layout = "stereo"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ch_layout", layout,
		"-ar", strconv.Itoa(s.sampleRate),
		"-i", "-",
	}

	cmd := exec.CommandContext(s.ctx, s.command, args...)
	cmd.Stdout = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffplay stdin pipe: %w", err)
	}

	child, err := launch("ffplay", cmd)
	if err != nil {
		_ = stdin.Close()
		return err
	}
	s.child = child
	s.stdin = stdin
	return nil
}

// stopLocked closes stdin and stops ffplay. With drain set, ffplay may first
// finish the audio it already holds.
func (s *ffplaySpeaker) stopLocked(drain bool) error {
	if s.child == nil {
		return nil
	}
	_ = s.stdin.Close()
	var err error
	if drain {
		err = s.child.stopAfter(stopGrace)
	} else {
		err = s.child.stop()
	}
	s.child = nil
	s.stdin = nil
	return err
}

func (s *ffplaySpeaker) Play(chunk pcm.AudioChunk) error {
	if len(chunk.Samples) == 0 {
		return nil
	}
	data := pcm.Encode(chunk.Samples)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSpeakerClosed
	}
	if s.stdin == nil {
		if err := s.startLocked(); err != nil {
			return err
		}
	}
	if _, err := s.stdin.Write(data); err != nil {
		_ = s.stopLocked(false)
		return fmt.Errorf("write to ffplay: %w", err)
	}
	return nil
}

// Flush discards audio buffered inside ffplay by stopping it. The next Play
// starts a fresh process.
func (s *ffplaySpeaker) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.stopLocked(false)
}

func (s *ffplaySpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stopLocked(true)
}

// Package pcm converts between float audio samples and 16-bit little-endian PCM.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// InputSampleRate is the microphone rate expected by the live service.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of audio produced by the live service.
	OutputSampleRate = 24000

	bytesPerSample = 2
	scale          = 32768.0
)

// DecodeError reports a PCM payload that does not hold whole frames.
type DecodeError struct {
	Length   int
	Channels int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pcm payload of %d bytes is not a multiple of %d", e.Length, bytesPerSample*e.Channels)
}

// AudioChunk is a unit of captured or received audio.
type AudioChunk struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the chunk.
func (c AudioChunk) Frames() int {
	if c.Channels <= 0 {
		return len(c.Samples)
	}
	return len(c.Samples) / c.Channels
}

// Duration is the nominal playback length of the chunk.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Encode clamps samples to [-1, 1] and emits signed 16-bit little-endian PCM.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(quantize(sample)))
	}
	return out
}

// Decode converts PCM bytes into a chunk at the given rate and channel count.
func Decode(data []byte, sampleRate int, channels int) (AudioChunk, error) {
	if channels <= 0 {
		channels = 1
	}
	if len(data)%(bytesPerSample*channels) != 0 {
		return AudioChunk{}, &DecodeError{Length: len(data), Channels: channels}
	}

	samples := make([]float32, len(data)/bytesPerSample)
	for i := range samples {
		value := int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
		samples[i] = float32(value) / scale
	}
	return AudioChunk{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// EncodeBase64 encodes samples as base64 PCM ready for the transport.
func EncodeBase64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Encode(samples))
}

// DecodeBase64 decodes a base64 PCM payload.
func DecodeBase64(payload string, sampleRate int, channels int) (AudioChunk, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return AudioChunk{}, fmt.Errorf("invalid base64 audio: %w", err)
	}
	return Decode(data, sampleRate, channels)
}

// RMS is the root-mean-square energy of the samples, in [0, 1].
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range samples {
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// MIMEType returns the transport mime type for mono PCM at rate.
func MIMEType(rate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}

// RateFromMIME extracts the rate parameter from an audio/pcm mime type.
func RateFromMIME(mimeType string, fallback int) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}

func quantize(sample float32) int16 {
	v := float64(sample)
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	scaled := math.Round(v * scale)
	if scaled > math.MaxInt16 {
		scaled = math.MaxInt16
	}
	return int16(scaled)
}

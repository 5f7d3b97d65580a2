// Package speech wraps microphone capture, speech-to-text and text-to-speech
// behind a blocking, fallible Listen/Speak surface.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"
)

var (
	// ErrNotUnderstood means audio was captured but produced no transcript.
	ErrNotUnderstood = errors.New("speech not understood")
	// ErrServiceUnavailable means the recognition request could not complete.
	ErrServiceUnavailable = errors.New("speech recognition service unavailable")
	// ErrWaitTimeout means nobody started speaking before the timeout.
	ErrWaitTimeout = errors.New("listening timed out while waiting for phrase to start")
)

// AdapterError is any other listen/speak failure, such as a missing
// microphone or recorder binary.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("speech %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Transcriber turns a recorded audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (string, error)
}

// Synthesizer renders text into an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// Recorder captures microphone audio.
type Recorder interface {
	// Calibrate records ambient noise for d and returns its RMS amplitude (0..1).
	Calibrate(ctx context.Context, d time.Duration) (float64, error)
	// Capture waits up to timeout for sound above threshold (0..1) and records
	// at most phraseLimit of it into outPath.
	Capture(ctx context.Context, threshold float64, timeout, phraseLimit time.Duration, outPath string) error
}

// Player plays an audio file and returns when playback ends.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Options tune the listen pipeline.
type Options struct {
	TempDir     string        // where audio files are staged; empty means os.TempDir
	Calibration time.Duration // ambient noise sample length
	Sensitivity float64       // threshold = ambient level * Sensitivity
	MinLevel    float64       // lower bound for the threshold
	AudioFormat string        // extension of synthesized audio files
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		Calibration: 200 * time.Millisecond,
		Sensitivity: 3,
		MinLevel:    0.005,
		AudioFormat: "mp3",
	}
}

// Service composes a recorder, a transcriber, a synthesizer and a player.
type Service struct {
	rec    Recorder
	stt    Transcriber
	tts    Synthesizer
	player Player
	opts   Options
}

// NewService creates a Service. tts and player may be nil, in which case
// Speak is a no-op.
func NewService(rec Recorder, stt Transcriber, tts Synthesizer, player Player, opts Options) *Service {
	return &Service{rec: rec, stt: stt, tts: tts, player: player, opts: opts}
}

// Listen calibrates against ambient noise, captures one phrase and
// transcribes it. It blocks for the whole capture and transcription.
func (s *Service) Listen(ctx context.Context, timeout, phraseLimit time.Duration) (string, error) {
	level, err := s.rec.Calibrate(ctx, s.opts.Calibration)
	if err != nil {
		return "", &AdapterError{Op: "calibrate", Err: err}
	}
	threshold := s.threshold(level)
	slog.Debug("ambient noise calibrated", "level", level, "threshold", threshold)

	path, err := s.tempFile("answer-*.wav")
	if err != nil {
		return "", &AdapterError{Op: "listen", Err: err}
	}
	defer os.Remove(path)

	if err := s.rec.Capture(ctx, threshold, timeout, phraseLimit, path); err != nil {
		return "", &AdapterError{Op: "capture", Err: err}
	}

	text, err := s.stt.Transcribe(ctx, path)
	if err != nil {
		return "", classifyTranscribeErr(ctx, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNotUnderstood
	}
	slog.Debug("recognized speech", "text", text)
	return text, nil
}

// Speak synthesizes text and blocks until playback completes.
func (s *Service) Speak(ctx context.Context, text string) error {
	if s.tts == nil || s.player == nil {
		return nil
	}

	path, err := s.tempFile("speech-*." + s.opts.AudioFormat)
	if err != nil {
		return &AdapterError{Op: "speak", Err: err}
	}
	defer os.Remove(path)

	if err := s.tts.Synthesize(ctx, text, path); err != nil {
		return &AdapterError{Op: "synthesize", Err: err}
	}
	if err := s.player.Play(ctx, path); err != nil {
		return &AdapterError{Op: "play", Err: err}
	}
	return nil
}

// classifyTranscribeErr keeps ErrServiceUnavailable for failures on the
// remote side. Local file errors and cancellation are adapter errors.
func classifyTranscribeErr(ctx context.Context, err error) error {
	var ae *AdapterError
	var pe *fs.PathError
	switch {
	case errors.Is(err, ErrNotUnderstood), errors.As(err, &ae):
		return err
	case ctx.Err() != nil:
		return &AdapterError{Op: "transcribe", Err: ctx.Err()}
	case errors.As(err, &pe):
		return &AdapterError{Op: "transcribe", Err: err}
	}
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}

func (s *Service) threshold(level float64) float64 {
	t := level * s.opts.Sensitivity
	if t < s.opts.MinLevel {
		t = s.opts.MinLevel
	}
	if t > 1 {
		t = 1
	}
	return t
}

func (s *Service) tempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(s.opts.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}
